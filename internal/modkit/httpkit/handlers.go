// Package httpkit is what modules use to declare routes and handlers
//
// Handlers return (any, error). A returned Response is written as is, any
// other value is wrapped in a 200 envelope, and an error is mapped through
// platform/errors. Modules never import platform/net/http directly.
package httpkit

import (
	"net/http"

	phttp "clockrelay/internal/platform/net/http"
	"clockrelay/internal/platform/net/http/bind"

	"github.com/go-chi/chi/v5"
)

type (
	Envelope = phttp.Envelope
	Response = phttp.Response
	Handler  = phttp.Handler
	Router   = phttp.Router
)

// Created wraps data in a 201
func Created(data any) Response { return phttp.Created(data) }

// NoContent is an empty 204
func NoContent() Response { return phttp.NoContent() }

// Error maps err to its status and envelope
func Error(err error) Response { return phttp.Error(err) }

// Redirect is a 302 to location that still carries body
func Redirect(location string, body any) Response { return phttp.Redirect(location, body) }

// Handle adapts a handler that builds its own Response
func Handle(fn func(*http.Request) Response) Handler { return phttp.Handle(fn) }

// URLParam returns the named path parameter of the matched route
func URLParam(r *http.Request, name string) string { return chi.URLParam(r, name) }

// bodyOptional binds an empty POST to the zero value, capped like the default binder
var bodyOptional = bind.JSONOptions{MaxBytes: 1 << 20, DisallowUnknown: true, AllowEmptyBody: true}

func reply(out any, err error) Response {
	if err != nil {
		return phttp.Error(err)
	}
	if resp, ok := out.(Response); ok {
		return resp
	}
	return phttp.OK(out)
}

func call(fn func(*http.Request) (any, error)) Handler {
	return phttp.Handle(func(r *http.Request) Response { return reply(fn(r)) })
}

func bound[T any](fn func(*http.Request, T) (any, error), opts ...bind.JSONOptions) Handler {
	return phttp.Handle(func(r *http.Request) Response {
		in, err := bind.ParseJSON[T](r, opts...)
		if err != nil {
			return phttp.Error(err)
		}
		return reply(fn(r, in))
	})
}

// Get routes a body-less GET
func Get(r Router, path string, h func(*http.Request) (any, error)) { r.Get(path, call(h)) }

// Post routes a body-less POST
func Post(r Router, path string, h func(*http.Request) (any, error)) { r.Post(path, call(h)) }

// Delete routes a DELETE
func Delete(r Router, path string, h func(*http.Request) (any, error)) { r.Delete(path, call(h)) }

// PostJSON routes a POST whose body is decoded and validated into T first
func PostJSON[T any](r Router, path string, h func(*http.Request, T) (any, error)) {
	r.Post(path, bound(h))
}

// PostJSONOptional is PostJSON where an empty body binds the zero T unvalidated
func PostJSONOptional[T any](r Router, path string, h func(*http.Request, T) (any, error)) {
	r.Post(path, bound(h, bodyOptional))
}
