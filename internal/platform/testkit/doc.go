// Package testkit starts disposable backing services for integration tests
//
// Each starter sits behind its own build tag (integration_pg, integration_ch)
// so plain go test never needs docker.
package testkit
