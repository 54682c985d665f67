package main

// General API documentation for swaggo. Run `make swagger-gen` to generate docs.
//
// @title           onnxd API
// @version         1.0
// @description     HTTP API for ONNX model management and evaluation.
//
// @contact.name   onnxd maintainers
// @contact.url    https://github.com/your-org/onnxd
//
// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT
//
// @BasePath  /
//
// @schemes http
