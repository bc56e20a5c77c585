// Package services holds the error taxonomy and context annotations shared
// by every pipeline stage, plus the HTTP clients for the external
// management and user services in its subpackages.
package services
