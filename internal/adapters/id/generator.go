package id

import (
	gonanoid "github.com/matoous/go-nanoid/v2"
)

type Generator struct{}

func New() *Generator {
	return &Generator{}
}

func (g *Generator) GenerateConnectionID() string {
	id, err := gonanoid.New(21)
	if err != nil {
		return "bc_fallback"
	}
	return "bc_" + id
}
