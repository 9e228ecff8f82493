package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	// Database
	DatabaseURL string

	// Auth0
	Auth0Domain   string
	Auth0Audience string

	// Server
	Port        string
	CORSOrigins []string
	Env         string

	// Direct debit
	Debit DebitConfig

	// S3 export archive (optional; archive disabled when bucket is empty)
	S3 S3Config

	// Banking gateway
	Bank BankConfig
}

// BankConfig points at the FinTS gateway sidecar that holds the actual
// bank credentials and drives the online-banking dialog.
type BankConfig struct {
	GatewayURL   string
	GatewayToken string
}

// DebitConfig carries the per-organization SEPA collection settings. It is
// built once at startup and threaded through explicitly instead of being
// fetched ad hoc.
type DebitConfig struct {
	CreditorID   string
	CreditorName string
	Currency     string

	// MandateReferencePrefix is a short string identifying the creditor at
	// the start of every assigned mandate reference.
	MandateReferencePrefix string
	// MandateReferenceLength is the total length of assigned references.
	MandateReferenceLength int

	// DebitLeadDays and HolidayRegion drive the suggested collection date.
	DebitLeadDays int
	HolidayRegion string

	// SequenceTypePolicy selects how payment sequence types are assigned.
	// Only "always-frst" is implemented; the correct per-mandate
	// FRST/RCUR distinction is a known open gap.
	SequenceTypePolicy string

	// Mandate notification template data.
	AssociationName       string
	ContactAddress        string
	AdditionalInformation string
	NotificationSubject   string
	NotificationBody      string
}

// S3Config holds the export archive storage configuration
type S3Config struct {
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	Endpoint        string // Optional: for MinIO/LocalStack local dev
}

// DefaultNotificationSubject and DefaultNotificationBody are the fallback
// mail sent when a mandate reference is assigned.
const DefaultNotificationSubject = "SEPA Direct Debit mandate reference notification"

const DefaultNotificationBody = `Hi,

this is to inform you of the SEPA mandate reference we will be using in the
future to issue direct debits for your {association_name} membership fees.

 Mandate reference: {sepa_mandate_reference}
 Your IBAN on file: {sepa_iban}
 Your BIC:          {sepa_bic}

 Our Creditor ID:   {creditor_id}

If you have any questions relating to your member fees or you want to update
your member data, please contact us at {contact}.

{additional_information}

Thanks,
the robo clerk`

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not found)
	_ = godotenv.Load()

	cfg := &Config{
		DatabaseURL:   getEnv("DATABASE_URL", ""),
		Auth0Domain:   getEnv("AUTH0_DOMAIN", ""),
		Auth0Audience: getEnv("AUTH0_AUDIENCE", ""),
		Port:          getEnv("PORT", "8080"),
		CORSOrigins:   strings.Split(getEnv("CORS_ORIGINS", "http://localhost:3000"), ","),
		Env:           getEnv("ENV", "development"),
		Debit: DebitConfig{
			CreditorID:             getEnv("SEPA_CREDITOR_ID", ""),
			CreditorName:           getEnv("SEPA_CREDITOR_NAME", ""),
			Currency:               getEnv("SEPA_CURRENCY", "EUR"),
			MandateReferencePrefix: getEnv("MANDATE_REFERENCE_PREFIX", ""),
			MandateReferenceLength: getEnvInt("MANDATE_REFERENCE_LENGTH", 22),
			DebitLeadDays:          getEnvInt("DEBIT_LEAD_DAYS", 14),
			HolidayRegion:          getEnv("HOLIDAY_REGION", "DE"),
			SequenceTypePolicy:     getEnv("SEQUENCE_TYPE_POLICY", "always-frst"),
			AssociationName:        getEnv("ASSOCIATION_NAME", ""),
			ContactAddress:         getEnv("CONTACT_ADDRESS", ""),
			AdditionalInformation:  getEnv("ADDITIONAL_INFORMATION", ""),
			NotificationSubject:    getEnv("NOTIFICATION_SUBJECT", DefaultNotificationSubject),
			NotificationBody:       getEnv("NOTIFICATION_BODY", DefaultNotificationBody),
		},
		S3: S3Config{
			Region:          getEnv("S3_REGION", "eu-central-1"),
			Bucket:          getEnv("S3_BUCKET", ""),
			AccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
			Endpoint:        getEnv("S3_ENDPOINT", ""), // Empty = use AWS, set for MinIO/LocalStack
		},
		Bank: BankConfig{
			GatewayURL:   getEnv("BANK_GATEWAY_URL", ""),
			GatewayToken: getEnv("BANK_GATEWAY_TOKEN", ""),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.Auth0Domain == "" {
		return fmt.Errorf("AUTH0_DOMAIN is required")
	}
	if c.Auth0Audience == "" {
		return fmt.Errorf("AUTH0_AUDIENCE is required")
	}
	if c.Debit.CreditorID == "" {
		return fmt.Errorf("SEPA_CREDITOR_ID is required")
	}
	if c.Debit.CreditorName == "" {
		return fmt.Errorf("SEPA_CREDITOR_NAME is required")
	}
	if c.Debit.MandateReferenceLength < 8 || c.Debit.MandateReferenceLength > 35 {
		return fmt.Errorf("MANDATE_REFERENCE_LENGTH must be between 8 and 35")
	}
	if c.Bank.GatewayURL == "" {
		return fmt.Errorf("BANK_GATEWAY_URL is required")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}
