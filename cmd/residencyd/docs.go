package main

// General API documentation for swaggo. Regenerate with `swag init -g cmd/residencyd/docs.go -o docs`.
//
// @title           residencyd API
// @version         1.0
// @description     GPU model residency tracking and ghost-memory detection.
//
// @contact.name   residencyd maintainers
// @contact.url    https://github.com/your-org/residencyd
//
// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT
//
// @BasePath  /
//
// @schemes http
