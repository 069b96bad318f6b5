// Package id provides prefixed ID generation for all persisted entities.
package id

import (
	nanoid "github.com/matoous/go-nanoid/v2"
)

const DefaultLength = 21

const (
	PrefixUser         = "user"
	PrefixConversation = "conv"
	PrefixMessage      = "msg"
	PrefixProvider     = "prov"
	PrefixMCPServer    = "mcp"
	PrefixPreset       = "preset"
	PrefixRefreshToken = "rt"
)

func New(prefix string) string {
	id, err := nanoid.New(DefaultLength)
	if err != nil {
		panic("nanoid generation failed: " + err.Error())
	}
	return prefix + "_" + id
}

func NewUser() string         { return New(PrefixUser) }
func NewConversation() string { return New(PrefixConversation) }
func NewMessage() string      { return New(PrefixMessage) }
func NewProvider() string     { return New(PrefixProvider) }
func NewMCPServer() string    { return New(PrefixMCPServer) }
func NewPreset() string       { return New(PrefixPreset) }
func NewRefreshToken() string { return New(PrefixRefreshToken) }
