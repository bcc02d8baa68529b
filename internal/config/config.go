// Package config loads application configuration. Precedence is
// command-line flags, then environment variables, then .env files, then
// an optional ~/.tieout.yaml, then the embedded source definitions.
// Secrets only ever come from the environment or .env files.
package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"github.com/agentstation/tieout/pkg/errors"
	"github.com/agentstation/tieout/pkg/record"
)

// Default values applied when neither the environment nor a config file
// sets them.
const (
	// DefaultCallbackPort is the loopback port the interactive
	// authorization flow listens on.
	DefaultCallbackPort = 8910

	// DefaultEpsilon is the amount comparison tolerance.
	DefaultEpsilon = "0.01"

	credentialsDirName = ".tieout"
)

// Salesforce holds connection settings for the Salesforce instance.
type Salesforce struct {
	ClientID     string
	ClientSecret string
	AuthorizeURL string
	TokenURL     string
	APIVersion   string
}

// QuickBooks holds connection settings for the QuickBooks company.
type QuickBooks struct {
	ClientID     string
	ClientSecret string
	AuthorizeURL string
	TokenURL     string
	BaseURL      string
	RealmID      string
	PageSize     int
}

// Avalara holds connection settings for the AvaTax account.
type Avalara struct {
	BaseURL     string
	AccountID   string
	LicenseKey  string
	CompanyCode string
	PageSize    int
}

// Shopify holds connection settings for the Shopify shop.
type Shopify struct {
	BaseURL     string
	AccessToken string
	APIVersion  string
	PageSize    int
}

// Config is the resolved application configuration.
type Config struct {
	Salesforce Salesforce
	QuickBooks QuickBooks
	Avalara    Avalara
	Shopify    Shopify

	// CredentialsDir is where OAuth tokens are persisted.
	CredentialsDir string

	// CallbackPort is the loopback port for interactive authorization.
	CallbackPort int

	// Epsilon is the amount comparison tolerance.
	Epsilon decimal.Decimal

	// SkipEnrichment disables per-record secondary lookups.
	SkipEnrichment bool

	// Verbose enables debug logging.
	Verbose bool
}

// Load builds the application configuration.
func Load() (*Config, error) {
	loadEnvFiles()

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	bindSecrets()

	if configFile := viper.GetString("config"); configFile != "" {
		viper.SetConfigFile(configFile)
	} else if home, err := os.UserHomeDir(); err == nil {
		viper.AddConfigPath(home)
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".tieout")
	}
	// A missing config file is fine; the environment covers everything.
	_ = viper.ReadInConfig()

	defs, err := Definitions()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Salesforce: salesforceConfig(defs[record.SourceSalesforce]),
		QuickBooks: quickbooksConfig(defs[record.SourceQuickBooks]),
		Avalara:    avalaraConfig(defs[record.SourceAvalara]),
		Shopify:    shopifyConfig(defs[record.SourceShopify]),

		CredentialsDir: viper.GetString("TIEOUT_CREDENTIALS_DIR"),
		CallbackPort:   viper.GetInt("TIEOUT_CALLBACK_PORT"),
		SkipEnrichment: viper.GetBool("TIEOUT_SKIP_ENRICHMENT"),
		Verbose:        viper.GetBool("TIEOUT_VERBOSE"),
	}

	if cfg.CredentialsDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, errors.NewConfigError("credentials", "resolving home directory", err)
		}
		cfg.CredentialsDir = filepath.Join(home, credentialsDirName)
	}
	if cfg.CallbackPort == 0 {
		cfg.CallbackPort = DefaultCallbackPort
	}

	raw := viper.GetString("TIEOUT_EPSILON")
	if raw == "" {
		raw = DefaultEpsilon
	}
	cfg.Epsilon, err = decimal.NewFromString(raw)
	if err != nil {
		return nil, errors.NewConfigError("epsilon", "parsing TIEOUT_EPSILON "+raw, err)
	}

	return cfg, nil
}

func salesforceConfig(def Definition) Salesforce {
	return Salesforce{
		ClientID:     viper.GetString("SALESFORCE_CLIENT_ID"),
		ClientSecret: viper.GetString("SALESFORCE_CLIENT_SECRET"),
		AuthorizeURL: override("SALESFORCE_AUTHORIZE_URL", def.AuthorizeURL),
		TokenURL:     override("SALESFORCE_TOKEN_URL", def.TokenURL),
		APIVersion:   def.APIVersion,
	}
}

func quickbooksConfig(def Definition) QuickBooks {
	return QuickBooks{
		ClientID:     viper.GetString("QUICKBOOKS_CLIENT_ID"),
		ClientSecret: viper.GetString("QUICKBOOKS_CLIENT_SECRET"),
		AuthorizeURL: override("QUICKBOOKS_AUTHORIZE_URL", def.AuthorizeURL),
		TokenURL:     override("QUICKBOOKS_TOKEN_URL", def.TokenURL),
		BaseURL:      override("QUICKBOOKS_BASE_URL", def.BaseURL),
		RealmID:      viper.GetString("QUICKBOOKS_REALM_ID"),
		PageSize:     def.PageSize,
	}
}

func avalaraConfig(def Definition) Avalara {
	return Avalara{
		BaseURL:     override("AVALARA_BASE_URL", def.BaseURL),
		AccountID:   viper.GetString("AVALARA_ACCOUNT_ID"),
		LicenseKey:  viper.GetString("AVALARA_LICENSE_KEY"),
		CompanyCode: viper.GetString("AVALARA_COMPANY_CODE"),
		PageSize:    def.PageSize,
	}
}

func shopifyConfig(def Definition) Shopify {
	base := viper.GetString("SHOPIFY_SHOP_URL")
	if base == "" {
		if shop := viper.GetString("SHOPIFY_SHOP"); shop != "" {
			base = "https://" + shop + ".myshopify.com"
		}
	}
	return Shopify{
		BaseURL:     base,
		AccessToken: viper.GetString("SHOPIFY_ACCESS_TOKEN"),
		APIVersion:  def.APIVersion,
		PageSize:    def.PageSize,
	}
}

// override prefers the environment value over the embedded default.
func override(key, def string) string {
	if v := viper.GetString(key); v != "" {
		return v
	}
	return def
}

// loadEnvFiles loads .env files if they exist. Missing files are fine.
func loadEnvFiles() {
	envFiles := []string{
		".env",
		".env.local",
	}
	for _, envFile := range envFiles {
		_ = godotenv.Load(envFile)
	}
}

// bindSecrets explicitly binds credential environment variables so Viper
// sees values loaded from .env files.
func bindSecrets() {
	keys := []string{
		"SALESFORCE_CLIENT_ID",
		"SALESFORCE_CLIENT_SECRET",
		"SALESFORCE_AUTHORIZE_URL",
		"SALESFORCE_TOKEN_URL",
		"QUICKBOOKS_CLIENT_ID",
		"QUICKBOOKS_CLIENT_SECRET",
		"QUICKBOOKS_AUTHORIZE_URL",
		"QUICKBOOKS_TOKEN_URL",
		"QUICKBOOKS_BASE_URL",
		"QUICKBOOKS_REALM_ID",
		"AVALARA_BASE_URL",
		"AVALARA_ACCOUNT_ID",
		"AVALARA_LICENSE_KEY",
		"AVALARA_COMPANY_CODE",
		"SHOPIFY_SHOP",
		"SHOPIFY_SHOP_URL",
		"SHOPIFY_ACCESS_TOKEN",
		"TIEOUT_CREDENTIALS_DIR",
		"TIEOUT_CALLBACK_PORT",
		"TIEOUT_EPSILON",
		"TIEOUT_SKIP_ENRICHMENT",
		"TIEOUT_VERBOSE",
	}
	for _, key := range keys {
		_ = viper.BindEnv(key)
	}
}
