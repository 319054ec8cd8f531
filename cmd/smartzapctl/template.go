package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/smartzap/backend/internal/repositories"
	"github.com/spf13/cobra"
)

var templateCmd = &cobra.Command{
	Use:   "template",
	Short: "Manage the local copy of approved message templates",
}

var templateImportCmd = &cobra.Command{
	Use:   "import [file]",
	Short: "Import templates exported from the WhatsApp Business Manager",
	Long: `Reads a JSON file holding one template or a list of templates in the
Graph API shape ({"name","category","language","status","components"}) and
upserts them by name.`,
	Args: cobra.ExactArgs(1),
	RunE: runTemplateImport,
}

func init() {
	templateCmd.AddCommand(templateImportCmd)
	rootCmd.AddCommand(templateCmd)
}

type templateFile struct {
	Name       string          `json:"name"`
	Category   string          `json:"category"`
	Language   string          `json:"language"`
	Status     string          `json:"status"`
	Components json.RawMessage `json:"components"`
}

// parseTemplateFile accepts a single object, an array, or the Graph API
// list envelope {"data": [...]}.
func parseTemplateFile(raw []byte) ([]templateFile, error) {
	var list []templateFile
	if err := json.Unmarshal(raw, &list); err == nil {
		return list, nil
	}

	var envelope struct {
		Data []templateFile `json:"data"`
	}
	if err := json.Unmarshal(raw, &envelope); err == nil && len(envelope.Data) > 0 {
		return envelope.Data, nil
	}

	var single templateFile
	if err := json.Unmarshal(raw, &single); err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	if single.Name == "" {
		return nil, errors.New("parse templates: no template name found")
	}
	return []templateFile{single}, nil
}

func runTemplateImport(cmd *cobra.Command, args []string) error {
	raw, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	templates, err := parseTemplateFile(raw)
	if err != nil {
		return err
	}

	e, err := openEnv(cmd.Context(), false)
	if err != nil {
		return err
	}
	defer e.Close()

	repo := repositories.NewTemplateRepo(e.pool)
	imported := 0
	for _, t := range templates {
		if t.Name == "" {
			fmt.Fprintln(os.Stderr, "skipping template without a name")
			continue
		}
		if t.Language == "" {
			t.Language = e.cfg.TemplateLanguage
		}
		if t.Status == "" {
			t.Status = "APPROVED"
		}
		components := []byte(t.Components)
		if len(components) == 0 {
			components = []byte("[]")
		}
		if err := repo.Upsert(cmd.Context(), t.Name, t.Category, t.Language, t.Status, components); err != nil {
			return fmt.Errorf("template %s: %w", t.Name, err)
		}
		imported++
	}
	fmt.Printf("%d templates imported\n", imported)
	return nil
}
