package handlers

import (
	"folio/internal/auth"
	"folio/internal/covers"
	"folio/internal/database"
	"folio/internal/mirror"
	"folio/internal/scanner"
	"folio/internal/startup"
)

type Handlers struct {
	db      *database.Database
	mirror  *mirror.Mirror
	scanner *scanner.Scanner
	covers  *covers.Cache
	auth    *auth.Service
	config  *startup.Config
}

func New(db *database.Database, m *mirror.Mirror, sc *scanner.Scanner, cc *covers.Cache, as *auth.Service, config *startup.Config) *Handlers {
	return &Handlers{
		db:      db,
		mirror:  m,
		scanner: sc,
		covers:  cc,
		auth:    as,
		config:  config,
	}
}
