package web

import (
	_ "embed"
)

// Index is the single-page browser client.
//
//go:embed index.html
var Index []byte
