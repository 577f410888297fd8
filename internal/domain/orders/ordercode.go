package orders

import (
	"fmt"
	"strings"

	"github.com/speps/go-hashids/v2"
)

const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// CodeGenerator turns the serial order id into a short code customers can read
// out over the phone. Codes are reversible with the same salt.
type CodeGenerator struct {
	h *hashids.HashID
}

func NewCodeGenerator(salt string) (*CodeGenerator, error) {
	hd := hashids.NewData()
	hd.Salt = salt
	hd.MinLength = 6
	hd.Alphabet = codeAlphabet

	h, err := hashids.NewWithData(hd)
	if err != nil {
		return nil, fmt.Errorf("hashids: %w", err)
	}
	return &CodeGenerator{h: h}, nil
}

func (g *CodeGenerator) Generate(id int64) (string, error) {
	enc, err := g.h.EncodeInt64([]int64{id})
	if err != nil {
		return "", fmt.Errorf("encode order code: %w", err)
	}
	return "ORD-" + enc, nil
}

// Decode returns the order id behind a code, accepting it with or without prefix.
func (g *CodeGenerator) Decode(code string) (int64, error) {
	code = strings.TrimPrefix(strings.ToUpper(strings.TrimSpace(code)), "ORD-")
	ids, err := g.h.DecodeInt64WithError(code)
	if err != nil {
		return 0, fmt.Errorf("decode order code: %w", err)
	}
	if len(ids) != 1 {
		return 0, fmt.Errorf("decode order code: unexpected payload")
	}
	return ids[0], nil
}
