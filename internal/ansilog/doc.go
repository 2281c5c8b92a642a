// Package ansilog decodes terminal log text carrying ANSI SGR escape
// sequences into styled cells for a monospace grid renderer.
package ansilog
