package render

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Issuer is the company printed in the document header and footer.
type Issuer struct {
	Name    string   `yaml:"name"`
	Address []string `yaml:"address"`
	Email   string   `yaml:"email"`
	Phone   string   `yaml:"phone"`
	Website string   `yaml:"website"`
	// Logo is a file path or an http(s) URL. PNG, JPEG and GIF are supported.
	Logo   string   `yaml:"logo"`
	Footer []string `yaml:"footer"`
}

// DefaultIssuer returns the built-in issuer profile.
func DefaultIssuer() Issuer {
	return Issuer{
		Name: "PT Logistik Nusantara",
		Address: []string{
			"Jl. Sudirman No. 123",
			"Jakarta 10220, Indonesia",
		},
		Email:   "billing@logistiknusantara.co.id",
		Phone:   "+62 21 555 0123",
		Website: "www.logistiknusantara.co.id",
		Footer: []string{
			"Thank you for your business!",
			"Please include the invoice number with your transfer.",
		},
	}
}

// LoadIssuer reads an issuer profile from a YAML file. Fields left empty in
// the file keep their default values.
func LoadIssuer(path string) (Issuer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Issuer{}, fmt.Errorf("failed to read issuer profile: %w", err)
	}

	issuer := DefaultIssuer()
	if err := yaml.Unmarshal(data, &issuer); err != nil {
		return Issuer{}, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if issuer.Name == "" {
		return Issuer{}, fmt.Errorf("issuer profile %s: name is required", path)
	}

	return issuer, nil
}
