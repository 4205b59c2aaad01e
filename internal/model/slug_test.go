package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSlugify(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in, want string
	}{
		{"Swee Guan Hokkien Mee", "swee-guan-hokkien-mee"},
		{"  Ah Hock's  (Fried) Oyster!! ", "ah-hock-s-fried-oyster"},
		{"Café Déjà Vu", "cafe-deja-vu"},
		{"ＡＢＣ Noodle", "abc-noodle"},
		{"---", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Slugify(tt.in), tt.in)
	}
}

func TestSquash_Spaces(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "hokkien mee ep 13", Squash("Hokkien-Mee | EP.13", " "))
	assert.Equal(t, "pho bo", Squash("Phở Bò", " "))
}
