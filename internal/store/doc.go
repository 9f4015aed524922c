// Package store defines the resumable profile store. Implementations live in
// subpackages; this package must not import database drivers or concrete
// clients.
package store
