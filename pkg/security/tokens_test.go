package security

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateName(t *testing.T) {
	valid := []string{"reporte_empresa", "DESDE", "IDEMPRESA", "ventas-2024", "1"}
	for _, name := range valid {
		assert.NoError(t, ValidateName("template", name), name)
	}

	invalid := []string{
		"",
		"-o",
		"../etc/passwd",
		"a b",
		"name;rm",
		`x"y`,
		"reporte.jasper",
		strings.Repeat("a", MaxNameLength+1),
	}
	for _, name := range invalid {
		err := ValidateName("template", name)
		assert.ErrorIs(t, err, ErrInvalidToken, name)
	}
}

func TestValidateValue(t *testing.T) {
	valid := []string{"2024-01-01", "Compañía Álvarez", "", "a/b (c) #1", "10:30", "50%"}
	for _, v := range valid {
		assert.NoError(t, ValidateValue("P", v), v)
	}

	invalid := []string{`a"b`, "a'b", "$(id)", "a;b", "a|b", "a\nb", "`x`", "a&b", "<x>"}
	for _, v := range invalid {
		assert.ErrorIs(t, ValidateValue("P", v), ErrInvalidToken, v)
	}
}
