// Package domain contains the core business concepts for the md2html service.
// Keep this package free of transport (HTTP) and infrastructure (Redis) concerns.
package domain
