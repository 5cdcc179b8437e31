package photobooth

import "embed"

// EmbeddedAssets contains the booth client shipped with the server:
// booth.js. A file of the same name in StaticDir/js takes precedence.
//
//go:embed embedded/*
var EmbeddedAssets embed.FS
