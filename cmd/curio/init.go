// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Curio Contributors

package main

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/curio-dev/curio/internal/config"
	"github.com/curio-dev/curio/internal/provider"
	"github.com/curio-dev/curio/internal/secrets"
	curioerr "github.com/curio-dev/curio/pkg/errors"
)

// initHTTPClient is the HTTP client used for provider key validation.
// Exposed as a variable so tests can replace it.
var initHTTPClient = &http.Client{Timeout: 10 * time.Second}

// ProviderType aliases provider.ProviderName for use in the init wizard.
type ProviderType = provider.ProviderName

const (
	ProviderAnthropic = provider.ProviderAnthropic
	ProviderOpenAI    = provider.ProviderOpenAI
	ProviderGoogle    = provider.ProviderGoogle
)

// initWizardStep tracks which step of the wizard is active.
type initWizardStep int

const (
	stepEmbedProvider initWizardStep = iota // select embedding provider
	stepEmbedKey                            // enter embedding API key
	stepValidateEmbed                       // validating key (spinner)
	stepGenProvider                         // select generator provider
	stepGenKey                              // enter generator API key
	stepValidateGen                         // validating key (spinner)
	stepDone                                // wizard complete
	stepError                               // terminal error
)

// initResult holds the collected wizard configuration.
type initResult struct {
	EmbedProvider ProviderType
	EmbedKey      string
	GenProvider   ProviderType
	GenKey        string
}

// --- bubbletea messages ---

type (
	validationSuccessMsg struct{ step initWizardStep }
	validationErrorMsg   struct {
		step initWizardStep
		err  error
	}
)
type configWrittenMsg struct{ path string }

// --- lipgloss styles ---

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("99"))
	promptStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("212"))
	selectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	successStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	boxStyle      = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("62")).Padding(0, 1)
)

// embedProviders lists providers with an embeddings API. Anthropic serves
// completions only, so it appears in genProviders but not here.
var embedProviders = []ProviderType{
	ProviderOpenAI,
	ProviderGoogle,
}

var genProviders = []ProviderType{
	ProviderAnthropic,
	ProviderOpenAI,
	ProviderGoogle,
}

// initModel is the bubbletea model for the init wizard.
type initModel struct {
	step           initWizardStep
	embedIdx       int
	genIdx         int
	embedKeyInput  textinput.Model
	genKeyInput    textinput.Model
	spinner        spinner.Model
	result         initResult
	validationErr  string
	configPath     string
	secretStore    secrets.Store
	errFinal       error
	skipGenerator  bool
	forceOverwrite bool
}

func newInitModel(store secrets.Store) initModel {
	embedKey := textinput.New()
	embedKey.Placeholder = "paste API key here"
	embedKey.EchoMode = textinput.EchoPassword
	embedKey.EchoCharacter = '•'

	genKey := textinput.New()
	genKey.Placeholder = "paste API key here"
	genKey.EchoMode = textinput.EchoPassword
	genKey.EchoCharacter = '•'

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	return initModel{
		step:          stepEmbedProvider,
		embedIdx:      0,
		genIdx:        0,
		embedKeyInput: embedKey,
		genKeyInput:   genKey,
		spinner:       sp,
		secretStore:   store,
	}
}

func (m initModel) Init() tea.Cmd {
	return nil
}

func (m initModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case validationSuccessMsg:
		return m.handleValidationSuccess(msg)

	case validationErrorMsg:
		m.validationErr = msg.err.Error()
		switch msg.step {
		case stepValidateEmbed:
			m.step = stepEmbedKey
			m.embedKeyInput.Focus()
		case stepValidateGen:
			m.step = stepGenKey
			m.genKeyInput.Focus()
		}
		return m, nil

	case configWrittenMsg:
		m.step = stepDone
		m.configPath = msg.path
		return m, tea.Quit

	case error:
		m.step = stepError
		m.errFinal = msg
		return m, tea.Quit
	}

	return m.updateInputs(msg)
}

func (m initModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.step {
	case stepEmbedProvider:
		return m.handleEmbedProviderKey(msg)
	case stepEmbedKey:
		return m.handleEmbedKeyInput(msg)
	case stepGenProvider:
		return m.handleGenProviderKey(msg)
	case stepGenKey:
		return m.handleGenKeyInput(msg)
	}
	return m, nil
}

func (m initModel) handleEmbedProviderKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		if m.embedIdx > 0 {
			m.embedIdx--
		}
	case "down", "j":
		if m.embedIdx < len(embedProviders)-1 {
			m.embedIdx++
		}
	case "enter":
		m.result.EmbedProvider = embedProviders[m.embedIdx]
		m.step = stepEmbedKey
		m.validationErr = ""
		m.embedKeyInput.SetValue("")
		m.embedKeyInput.Focus()
		return m, textinput.Blink
	case "q", "ctrl+c":
		return m, tea.Quit
	}
	return m, nil
}

func (m initModel) handleEmbedKeyInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		key := strings.TrimSpace(m.embedKeyInput.Value())
		if key == "" {
			m.validationErr = "API key must not be empty"
			return m, nil
		}
		m.result.EmbedKey = key
		m.validationErr = ""
		m.step = stepValidateEmbed
		return m, tea.Batch(
			m.spinner.Tick,
			validateProviderKeyCmd(stepValidateEmbed, m.result.EmbedProvider, key),
		)
	case "ctrl+c":
		return m, tea.Quit
	}
	var cmd tea.Cmd
	m.embedKeyInput, cmd = m.embedKeyInput.Update(msg)
	return m, cmd
}

func (m initModel) handleGenProviderKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		if m.genIdx > 0 {
			m.genIdx--
		}
	case "down", "j":
		if m.genIdx < len(genProviders)-1 {
			m.genIdx++
		}
	case "enter":
		m.result.GenProvider = genProviders[m.genIdx]
		m.validationErr = ""
		if m.result.GenProvider == m.result.EmbedProvider {
			// Same provider as the embedder; its key is already validated
			// and stored, so go straight to the config write.
			return m, writeConfigCmd(m.result, m.secretStore, m.forceOverwrite)
		}
		m.step = stepGenKey
		m.genKeyInput.SetValue("")
		m.genKeyInput.Focus()
		return m, textinput.Blink
	case "s":
		// Skip generator: recommendations work without explanations.
		m.result.GenProvider = ""
		m.result.GenKey = ""
		return m, writeConfigCmd(m.result, m.secretStore, m.forceOverwrite)
	case "q", "ctrl+c":
		return m, tea.Quit
	}
	return m, nil
}

func (m initModel) handleGenKeyInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		key := strings.TrimSpace(m.genKeyInput.Value())
		if key == "" {
			m.validationErr = "API key must not be empty"
			return m, nil
		}
		m.result.GenKey = key
		m.validationErr = ""
		m.step = stepValidateGen
		return m, tea.Batch(
			m.spinner.Tick,
			validateProviderKeyCmd(stepValidateGen, m.result.GenProvider, key),
		)
	case "ctrl+c":
		return m, tea.Quit
	}
	var cmd tea.Cmd
	m.genKeyInput, cmd = m.genKeyInput.Update(msg)
	return m, cmd
}

func (m initModel) handleValidationSuccess(msg validationSuccessMsg) (tea.Model, tea.Cmd) {
	switch msg.step {
	case stepValidateEmbed:
		if m.skipGenerator {
			m.result.GenProvider = ""
			m.result.GenKey = ""
			return m, writeConfigCmd(m.result, m.secretStore, m.forceOverwrite)
		}
		m.step = stepGenProvider
	case stepValidateGen:
		return m, writeConfigCmd(m.result, m.secretStore, m.forceOverwrite)
	}
	return m, nil
}

func (m initModel) updateInputs(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch m.step {
	case stepEmbedKey:
		var cmd tea.Cmd
		m.embedKeyInput, cmd = m.embedKeyInput.Update(msg)
		return m, cmd
	case stepGenKey:
		var cmd tea.Cmd
		m.genKeyInput, cmd = m.genKeyInput.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m initModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("  Curio Setup Wizard  ") + "\n\n")

	switch m.step {
	case stepEmbedProvider:
		b.WriteString(promptStyle.Render("Step 1/2: Add your embedding provider") + "\n\n")
		for i, p := range embedProviders {
			if i == m.embedIdx {
				b.WriteString(selectedStyle.Render("  > "+string(p)) + "\n")
			} else {
				b.WriteString(dimStyle.Render("    "+string(p)) + "\n")
			}
		}
		b.WriteString("\n" + dimStyle.Render("↑/↓ to navigate  enter to select  q to quit"))

	case stepEmbedKey:
		b.WriteString(promptStyle.Render("Step 1/2: "+string(m.result.EmbedProvider)+" API key") + "\n\n")
		b.WriteString(m.embedKeyInput.View() + "\n")
		if m.validationErr != "" {
			b.WriteString("\n" + errorStyle.Render("  "+m.validationErr) + "\n")
		}
		b.WriteString("\n" + dimStyle.Render("enter to continue  ctrl+c to quit"))

	case stepValidateEmbed:
		b.WriteString(m.spinner.View() + " Validating " + string(m.result.EmbedProvider) + " API key…\n")

	case stepGenProvider:
		b.WriteString(promptStyle.Render("Step 2/2: Add a generator for explanations") + "\n\n")
		for i, p := range genProviders {
			if i == m.genIdx {
				b.WriteString(selectedStyle.Render("  > "+string(p)) + "\n")
			} else {
				b.WriteString(dimStyle.Render("    "+string(p)) + "\n")
			}
		}
		b.WriteString("\n" + dimStyle.Render("↑/↓ to navigate  enter to select  s to skip  q to quit"))

	case stepGenKey:
		b.WriteString(promptStyle.Render("Step 2/2: "+string(m.result.GenProvider)+" API key") + "\n\n")
		b.WriteString(m.genKeyInput.View() + "\n")
		if m.validationErr != "" {
			b.WriteString("\n" + errorStyle.Render("  "+m.validationErr) + "\n")
		}
		b.WriteString("\n" + dimStyle.Render("enter to continue  ctrl+c to quit"))

	case stepValidateGen:
		b.WriteString(m.spinner.View() + " Validating " + string(m.result.GenProvider) + " API key…\n")

	case stepDone:
		b.WriteString(successStyle.Render("  Setup complete!  ") + "\n\n")
		if m.configPath != "" {
			b.WriteString(dimStyle.Render("Config written to: "+m.configPath) + "\n\n")
		}
		b.WriteString("Run " + promptStyle.Render("curio serve") + " and " + promptStyle.Render("curio query") + " to get started.\n")
		b.WriteString("Run " + promptStyle.Render("curio doctor") + " to verify setup.\n")

	case stepError:
		b.WriteString(errorStyle.Render("Setup failed: "+m.errFinal.Error()) + "\n")
	}

	return boxStyle.Render(b.String())
}

// --- tea.Cmd factories ---

func validateProviderKeyCmd(step initWizardStep, p ProviderType, key string) tea.Cmd {
	return func() tea.Msg {
		if err := provider.ValidateKey(context.Background(), initHTTPClient, p, key); err != nil {
			return validationErrorMsg{step: step, err: err}
		}
		return validationSuccessMsg{step: step}
	}
}

func writeConfigCmd(result initResult, store secrets.Store, forceOverwrite bool) tea.Cmd {
	return func() tea.Msg {
		path, err := storeSecretAndWriteConfig(result, store, forceOverwrite)
		if err != nil {
			return err
		}
		return configWrittenMsg{path: path}
	}
}

// --- Config generation (exported for tests) ---

// Generated config document. Field names match the mapstructure keys the
// loader expects, so the wizard output round-trips through config.Load.
type initConfigDoc struct {
	Server    initServerDoc              `yaml:"server"`
	Storage   initStorageDoc             `yaml:"storage"`
	Providers map[string]initProviderDoc `yaml:"providers"`
	Models    initModelsDoc              `yaml:"models"`
}

type initServerDoc struct {
	Listen string `yaml:"listen"`
}

type initStorageDoc struct {
	CorpusBackend string `yaml:"corpus_backend"`
	IndexBackend  string `yaml:"index_backend"`
	Dimensions    int    `yaml:"dimensions"`
	Metric        string `yaml:"metric"`
}

type initProviderDoc struct {
	APIKey string `yaml:"api_key"`
}

type initModelsDoc struct {
	Version  string `yaml:"version"`
	Embedder string `yaml:"embedder"`
	// Written even when empty: an absent key would let the loader's
	// default generator leak in, which fails validation when its provider
	// has no entry in the generated providers section.
	Generator string `yaml:"generator"`
}

const initConfigHeader = `# Curio configuration generated by curio init.
# API keys live in the OS keyring and are referenced by keyring:// URIs;
# no secrets are written to this file.

`

// GenerateConfigYAML produces a minimal curio.yaml from the wizard result.
// API keys are referenced via keyring:// URIs; the actual secrets are stored
// separately via storeSecretAndWriteConfig.
func GenerateConfigYAML(result initResult) (string, error) {
	embedder, dims := defaultEmbedderForProvider(result.EmbedProvider)

	doc := initConfigDoc{
		Server: initServerDoc{Listen: "127.0.0.1:8821"},
		Storage: initStorageDoc{
			CorpusBackend: "sqlite",
			IndexBackend:  "sqlitevec",
			Dimensions:    dims,
			Metric:        "cosine",
		},
		Providers: map[string]initProviderDoc{
			string(result.EmbedProvider): {
				APIKey: keyringURI(result.EmbedProvider),
			},
		},
		Models: initModelsDoc{
			Version:  "v1",
			Embedder: embedder,
		},
	}

	if result.GenProvider != "" {
		doc.Providers[string(result.GenProvider)] = initProviderDoc{
			APIKey: keyringURI(result.GenProvider),
		}
		doc.Models.Generator = defaultGeneratorForProvider(result.GenProvider)
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return "", curioerr.Wrap(err, curioerr.CodeCLISetupFailure, "encoding generated config")
	}
	if err := enc.Close(); err != nil {
		return "", curioerr.Wrap(err, curioerr.CodeCLISetupFailure, "encoding generated config")
	}

	return initConfigHeader + buf.String(), nil
}

func keyringURI(p ProviderType) string {
	return secrets.URI(secrets.DefaultService, string(p)+"-api-key")
}

// defaultEmbedderForProvider returns the embedding model reference and its
// vector dimensionality for a provider.
func defaultEmbedderForProvider(p ProviderType) (string, int) {
	switch p {
	case ProviderGoogle:
		return "google/text-embedding-004", 768
	default:
		return "openai/text-embedding-3-small", 1536
	}
}

// defaultGeneratorForProvider returns a sensible completion model reference
// for a provider.
func defaultGeneratorForProvider(p ProviderType) string {
	switch p {
	case ProviderAnthropic:
		return "anthropic/claude-sonnet-4-5"
	case ProviderGoogle:
		return "google/gemini-2.0-flash"
	default:
		return "openai/gpt-4o-mini"
	}
}

// storeSecretAndWriteConfig saves API keys to the OS keyring and writes the
// config YAML to the default config path.
//
// When forceOverwrite is false and the config file already exists, an error is
// returned asking the user to pass --force. When forceOverwrite is true the
// entire config is overwritten (full re-init). A smarter merge that preserves
// hand-edited sections is left as a future enhancement.
func storeSecretAndWriteConfig(result initResult, store secrets.Store, forceOverwrite bool) (string, error) {
	embedKeyName := string(result.EmbedProvider) + "-api-key"
	if err := store.Store(secrets.DefaultService, embedKeyName, result.EmbedKey); err != nil {
		return "", curioerr.Errorf(curioerr.CodeSecretStoreFailure, "storing %s API key: %w", result.EmbedProvider, err)
	}

	// NOTE: If the config write fails below, secrets already stored in the
	// keyring are not rolled back. Orphaned keyring entries are harmless and
	// are overwritten on a successful re-run.
	if result.GenKey != "" {
		genKeyName := string(result.GenProvider) + "-api-key"
		if err := store.Store(secrets.DefaultService, genKeyName, result.GenKey); err != nil {
			return "", curioerr.Errorf(curioerr.CodeSecretStoreFailure, "storing %s API key: %w", result.GenProvider, err)
		}
	}

	cfgPath, err := configPathForWrite()
	if err != nil {
		return "", err
	}

	// Check for existing config unless --force is set.
	if !forceOverwrite {
		if _, statErr := os.Stat(cfgPath); statErr == nil {
			return "", curioerr.Errorf(curioerr.CodeConfigAlreadyExists,
				"config file already exists at %s; use --force to overwrite", cfgPath)
		}
	}

	dir := filepath.Dir(cfgPath)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", curioerr.Errorf(curioerr.CodeConfigLoadReadFailure, "creating config directory %s: %w", dir, err)
	}

	yamlText, err := GenerateConfigYAML(result)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(cfgPath, []byte(yamlText), 0o600); err != nil {
		return "", curioerr.Errorf(curioerr.CodeConfigLoadReadFailure, "writing config to %s: %w", cfgPath, err)
	}

	return cfgPath, nil
}

// configPathForWrite returns the config path the wizard writes to. Exported
// as a variable so tests can override it.
var configPathForWrite = config.DefaultConfigPath

// --- Cobra command ---

func newInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Interactive setup wizard for Curio",
		Long: `Run an interactive TUI wizard that walks you through:
  1. Adding an embedding provider (OpenAI, Google)
  2. Adding a generator for result explanations (Anthropic, OpenAI, Google)

API keys are stored securely in the OS keyring and referenced via
keyring:// URIs in the config file. No secrets are written in plain text.

After completion, run:
  curio serve    — start the gateway
  curio query    — get recommendations
  curio doctor   — verify your setup`,
		RunE: runInit,
	}

	cmd.Flags().Bool("skip-generator", false, "Skip the generator step (no explanations)")
	cmd.Flags().Bool("force", false, "Overwrite existing config file")

	return cmd
}

func runInit(cmd *cobra.Command, _ []string) error {
	// Refuse to run without a terminal; the wizard is interactive only.
	f, ok := cmd.InOrStdin().(*os.File)
	if !ok || !isTerminal(f) {
		_, _ = fmt.Fprintln(cmd.ErrOrStderr(),
			"curio init requires an interactive terminal.\n"+
				"To configure Curio non-interactively, edit ~/.config/curio/curio.yaml directly.")
		return curioerr.New(curioerr.CodeCLISetupFailure, "curio init: not an interactive terminal")
	}

	skipGenerator, _ := cmd.Flags().GetBool("skip-generator")
	forceOverwrite, _ := cmd.Flags().GetBool("force")

	store := secretStoreFactory()
	m := newInitModel(store)
	m.skipGenerator = skipGenerator
	m.forceOverwrite = forceOverwrite

	p := tea.NewProgram(m, tea.WithAltScreen())
	finalModel, err := p.Run()
	if err != nil {
		return curioerr.Errorf(curioerr.CodeCLISetupFailure, "init wizard error: %w", err)
	}

	fm, ok := finalModel.(initModel)
	if !ok {
		return curioerr.New(curioerr.CodeCLISetupFailure, "unexpected model type after wizard")
	}

	if fm.errFinal != nil {
		return curioerr.Errorf(curioerr.CodeCLISetupFailure, "init failed: %w", fm.errFinal)
	}

	// Quitting early without finishing is fine.
	return nil
}

// isTerminal reports whether f is a terminal file descriptor.
func isTerminal(f *os.File) bool {
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) != 0
}
