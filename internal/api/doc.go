// Package api handles incoming HTTP requests, routing, request validation,
// and response formatting. It translates HTTP requests into mail task
// service calls and maps service errors onto status codes.
package api
