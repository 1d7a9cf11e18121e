package uuid

import (
	"strconv"
	"time"

	guuid "github.com/google/uuid"
	gonanoid "github.com/matoous/go-nanoid"
)

// Generator UUID generator interface
type Generator interface {
	Generate() (string, error)
}

// NanoIDGenerator UUID implementation using NanoID
type NanoIDGenerator struct {
	Length int
}

var _ Generator = &NanoIDGenerator{}

// NewNanoIDGenerator create a new `NanoIDGenerator` instance
func NewNanoIDGenerator(length int) *NanoIDGenerator {
	if length < 1 {
		panic("length must be larger than 1")
	}
	return &NanoIDGenerator{Length: length}
}

// Generate generate UUID
func (ns *NanoIDGenerator) Generate() (string, error) {
	return gonanoid.Nanoid(ns.Length)
}

// RandomGenerator prefers a random (v4) UUID and falls back to a
// timestamp plus random suffix when the random source fails.
//
// The fallback is best-effort unique only, good enough for ids minted
// while offline that the remote later replaces or confirms.
type RandomGenerator struct {
	random   func() (guuid.UUID, error)
	fallback Generator
	now      func() time.Time
}

var _ Generator = &RandomGenerator{}

// NewRandomGenerator create a RandomGenerator, suffixLength is the length of
// the random part of fallback ids
func NewRandomGenerator(suffixLength int) *RandomGenerator {
	return &RandomGenerator{
		random:   guuid.NewRandom,
		fallback: NewNanoIDGenerator(suffixLength),
		now:      time.Now,
	}
}

// Generate generate UUID
func (rg *RandomGenerator) Generate() (string, error) {
	if id, err := rg.random(); err == nil {
		return id.String(), nil
	}
	suffix, err := rg.fallback.Generate()
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(rg.now().UnixNano()/int64(time.Millisecond), 36) + "-" + suffix, nil
}

// CodeAlphabet characters of participant access codes, no look-alikes
const CodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// CodeGenerator short human typeable codes
type CodeGenerator struct {
	Length int
}

var _ Generator = &CodeGenerator{}

// NewCodeGenerator ...
func NewCodeGenerator(length int) *CodeGenerator {
	if length < 1 {
		panic("length must be larger than 1")
	}
	return &CodeGenerator{Length: length}
}

// Generate generate a code
func (cg *CodeGenerator) Generate() (string, error) {
	return gonanoid.Generate(CodeAlphabet, cg.Length)
}
