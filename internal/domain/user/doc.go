// Package user is a simulated user service. It has no storage; each step
// sleeps for a configured delay inside its own span so that a request
// produces a realistic trace and repository metrics.
//
// Span tree of Service.Create:
//
//	UserService::create
//	├── UserService::validate
//	└── UserRepository::create
//	    ├── UserRepository::begin
//	    └── UserRepository::commit
package user
