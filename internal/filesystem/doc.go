// Package filesystem copies staged installation trees into place.
package filesystem
