package main

// General API documentation for swaggo. Regenerate internal/apidocs with
// `swag init -g cmd/vllmd/docs.go -o internal/apidocs --parseDependency`.
//
// @title           vllmd API
// @version         1.0
// @description     Supervisor for local vLLM serving processes: start, stop, status and a live feed.
//
// @contact.name   vllmd maintainers
//
// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT
//
// @BasePath  /
//
// @schemes http
