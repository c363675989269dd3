// Package http holds the Gin handlers of the public API.
//
// Routes:
//
//	GET  /healthz   {"message":"healthy"}
//	POST /users     creates a user under a CreateUserUseCase span
//	*               {"message":"not found"} with status 404
package http
