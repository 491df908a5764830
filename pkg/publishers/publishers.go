package publishers

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

const (
	// Supported publisher types.
	TypeEmail  = "email"
	TypeS3     = "s3"
	TypeGCS    = "gcs"
	TypeHTTP   = "http"
	TypeFile   = "file"
	TypeSQS    = "sqs"
	TypeSNS    = "sns"
	TypePubSub = "pubsub"

	httpDefaultMethod         = "POST"
	httpDefaultTimeoutSeconds = 10

	emailDefaultHost           = "smtp.gmail.com"
	emailDefaultPort           = 465
	emailDefaultSubject        = "Weekly SOC RSS Feed"
	emailDefaultBody           = "Attached is your weekly SOC RSS Feed."
	emailDefaultTimeoutSeconds = 30

	SecuritySSL      = "ssl"
	SecuritySTARTTLS = "starttls"
	SecurityNone     = "none"
)

// configFile represents the structure of the publishers configuration file.
type configFile struct {
	Publishers []PublisherConfig `json:"publishers" yaml:"publishers"`
}

// PublisherConfig represents a single publisher entry declared in config files.
type PublisherConfig struct {
	ID      string                 `json:"id" yaml:"id"`
	Type    string                 `json:"type" yaml:"type"`
	Enabled *bool                  `json:"enabled" yaml:"enabled"`
	Email   *EmailPublisherConfig  `json:"email" yaml:"email"`
	S3      *S3PublisherConfig     `json:"s3" yaml:"s3"`
	GCS     *GCSPublisherConfig    `json:"gcs" yaml:"gcs"`
	HTTP    *HTTPPublisherConfig   `json:"http" yaml:"http"`
	File    *FilePublisherConfig   `json:"file" yaml:"file"`
	SQS     *SQSPublisherConfig    `json:"sqs" yaml:"sqs"`
	SNS     *SNSPublisherConfig    `json:"sns" yaml:"sns"`
	PubSub  *PubSubPublisherConfig `json:"pubsub" yaml:"pubsub"`
}

// EmailPublisherConfig holds SMTP settings. To is a space or comma separated
// recipient list.
type EmailPublisherConfig struct {
	Host           string `json:"host" yaml:"host"`
	Port           int    `json:"port" yaml:"port"`
	Security       string `json:"security" yaml:"security"`
	Username       string `json:"username" yaml:"username"`
	Password       string `json:"password" yaml:"password"`
	From           string `json:"from" yaml:"from"`
	To             string `json:"to" yaml:"to"`
	Subject        string `json:"subject" yaml:"subject"`
	Body           string `json:"body" yaml:"body"`
	TimeoutSeconds int    `json:"timeout_seconds" yaml:"timeout_seconds"`
}

// Recipients splits To into addresses.
func (c EmailPublisherConfig) Recipients() []string {
	return strings.FieldsFunc(c.To, func(r rune) bool {
		return r == ' ' || r == ',' || r == ';' || r == '\t' || r == '\n'
	})
}

// S3PublisherConfig holds AWS S3 (or S3-compatible) bucket settings.
type S3PublisherConfig struct {
	Bucket          string `json:"bucket" yaml:"bucket"`
	Region          string `json:"region" yaml:"region"`
	KeyPrefix       string `json:"key_prefix" yaml:"key_prefix"`
	Dated           bool   `json:"dated" yaml:"dated"`
	Endpoint        string `json:"endpoint" yaml:"endpoint"`
	UsePathStyle    bool   `json:"use_path_style" yaml:"use_path_style"`
	AccessKeyID     string `json:"access_key_id" yaml:"access_key_id"`
	SecretAccessKey string `json:"secret_access_key" yaml:"secret_access_key"`
}

// GCSPublisherConfig holds Google Cloud Storage bucket settings.
type GCSPublisherConfig struct {
	Bucket          string `json:"bucket" yaml:"bucket"`
	ObjectPrefix    string `json:"object_prefix" yaml:"object_prefix"`
	Dated           bool   `json:"dated" yaml:"dated"`
	CredentialsFile string `json:"credentials_file" yaml:"credentials_file"`
	Endpoint        string `json:"endpoint" yaml:"endpoint"`
}

// HTTPPublisherConfig holds generic HTTP sink settings.
type HTTPPublisherConfig struct {
	URL            string            `json:"url" yaml:"url"`
	Method         string            `json:"method" yaml:"method"`
	Headers        map[string]string `json:"headers" yaml:"headers"`
	TimeoutSeconds int               `json:"timeout_seconds" yaml:"timeout_seconds"`
}

// FilePublisherConfig writes the report into a local directory.
type FilePublisherConfig struct {
	Dir   string `json:"dir" yaml:"dir"`
	Dated bool   `json:"dated" yaml:"dated"`
}

// SQSPublisherConfig holds AWS SQS specific settings.
type SQSPublisherConfig struct {
	QueueURL string `json:"uri" yaml:"uri"`
	Region   string `json:"region" yaml:"region"`
}

// SNSPublisherConfig holds AWS SNS topic settings.
type SNSPublisherConfig struct {
	TopicARN string `json:"topic_arn" yaml:"topic_arn"`
	Region   string `json:"region" yaml:"region"`
}

// PubSubPublisherConfig holds Google Cloud Pub/Sub topic settings.
type PubSubPublisherConfig struct {
	ProjectID string `json:"project_id" yaml:"project_id"`
	Topic     string `json:"topic" yaml:"topic"`
}

// ConfigRegistry materializes publisher definitions loaded from config files.
type ConfigRegistry struct {
	mu         sync.RWMutex
	publishers []PublisherConfig
	idx        map[string]PublisherConfig
}

// LoadRegistry loads the publisher registry from a YAML/JSON file. ${VAR}
// references are expanded from the environment before decoding.
func LoadRegistry(path string) (*ConfigRegistry, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("publishers file path is empty")
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read publishers file: %w", err)
	}

	fileReg, err := parsePublisherRegistry([]byte(os.ExpandEnv(string(raw))), filepath.Ext(path))
	if err != nil {
		return nil, err
	}
	if len(fileReg.Publishers) == 0 {
		return nil, errors.New("publishers file contains no publishers entries")
	}

	reg := &ConfigRegistry{
		publishers: make([]PublisherConfig, len(fileReg.Publishers)),
		idx:        make(map[string]PublisherConfig, len(fileReg.Publishers)),
	}

	for i := range fileReg.Publishers {
		cfg := sanitizePublisherConfig(fileReg.Publishers[i])
		if err := validatePublisherConfig(cfg); err != nil {
			return nil, fmt.Errorf("publishers[%d]: %w", i, err)
		}
		if _, exists := reg.idx[cfg.ID]; exists {
			return nil, fmt.Errorf("duplicate publisher id %q", cfg.ID)
		}
		reg.publishers[i] = cfg
		reg.idx[cfg.ID] = cfg
	}

	return reg, nil
}

// parsePublisherRegistry attempts to decode the publishers file content.
func parsePublisherRegistry(data []byte, ext string) (configFile, error) {
	ext = strings.ToLower(strings.TrimSpace(ext))
	decoders := []struct {
		name string
		ext  string
		fn   func([]byte, any) error
	}{
		{name: "yaml", ext: ".yaml", fn: yaml.Unmarshal},
		{name: "yaml", ext: ".yml", fn: yaml.Unmarshal},
		{name: "json", ext: ".json", fn: json.Unmarshal},
	}

	var errs []error
	for _, d := range decoders {
		if ext != "" && ext != d.ext {
			continue
		}
		reg, err := unmarshalPublisherRegistry(d.name, data, d.fn)
		if err == nil {
			return reg, nil
		}
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return configFile{}, errors.Join(errs...)
	}
	return configFile{}, errors.New("publishers file format not recognized (expected YAML or JSON)")
}

// unmarshalPublisherRegistry decodes the publishers file using the provided function.
func unmarshalPublisherRegistry(name string, data []byte, fn func([]byte, any) error) (configFile, error) {
	var reg configFile
	if err := fn(data, &reg); err != nil {
		return configFile{}, fmt.Errorf("decode %s publishers: %w", name, err)
	}
	return reg, nil
}

// sanitizePublisherConfig trims and normalizes the publisher config fields.
func sanitizePublisherConfig(cfg PublisherConfig) PublisherConfig {
	cfg.ID = strings.TrimSpace(cfg.ID)
	cfg.Type = strings.ToLower(strings.TrimSpace(cfg.Type))

	if cfg.Enabled == nil {
		def := true
		cfg.Enabled = &def
	}
	if cfg.Email != nil {
		c := *cfg.Email
		c.Host = strings.TrimSpace(c.Host)
		if c.Host == "" {
			c.Host = emailDefaultHost
		}
		c.Security = strings.ToLower(strings.TrimSpace(c.Security))
		if c.Port <= 0 {
			c.Port = emailDefaultPort
		}
		if c.Security == "" {
			c.Security = SecuritySSL
			if c.Port == 587 {
				c.Security = SecuritySTARTTLS
			}
		}
		c.From = strings.TrimSpace(c.From)
		c.Username = strings.TrimSpace(c.Username)
		if c.Username == "" {
			c.Username = c.From
		}
		if strings.TrimSpace(c.Subject) == "" {
			c.Subject = emailDefaultSubject
		}
		if strings.TrimSpace(c.Body) == "" {
			c.Body = emailDefaultBody
		}
		if c.TimeoutSeconds <= 0 {
			c.TimeoutSeconds = emailDefaultTimeoutSeconds
		}
		cfg.Email = &c
	}
	if cfg.S3 != nil {
		c := *cfg.S3
		c.Bucket = strings.TrimSpace(c.Bucket)
		c.Region = strings.TrimSpace(c.Region)
		c.KeyPrefix = strings.TrimSpace(c.KeyPrefix)
		c.Endpoint = strings.TrimSpace(c.Endpoint)
		c.AccessKeyID = strings.TrimSpace(c.AccessKeyID)
		c.SecretAccessKey = strings.TrimSpace(c.SecretAccessKey)
		cfg.S3 = &c
	}
	if cfg.GCS != nil {
		c := *cfg.GCS
		c.Bucket = strings.TrimSpace(c.Bucket)
		c.ObjectPrefix = strings.TrimSpace(c.ObjectPrefix)
		c.CredentialsFile = strings.TrimSpace(c.CredentialsFile)
		c.Endpoint = strings.TrimSpace(c.Endpoint)
		cfg.GCS = &c
	}
	if cfg.HTTP != nil {
		c := *cfg.HTTP
		c.URL = strings.TrimSpace(c.URL)
		c.Method = strings.ToUpper(strings.TrimSpace(c.Method))
		if c.Method == "" {
			c.Method = httpDefaultMethod
		}
		c.Headers = sanitizeHeaders(c.Headers)
		if c.TimeoutSeconds <= 0 {
			c.TimeoutSeconds = httpDefaultTimeoutSeconds
		}
		cfg.HTTP = &c
	}
	if cfg.File != nil {
		c := *cfg.File
		c.Dir = strings.TrimSpace(c.Dir)
		cfg.File = &c
	}
	if cfg.SQS != nil {
		c := *cfg.SQS
		c.QueueURL = strings.TrimSpace(c.QueueURL)
		c.Region = strings.TrimSpace(c.Region)
		cfg.SQS = &c
	}
	if cfg.SNS != nil {
		c := *cfg.SNS
		c.TopicARN = strings.TrimSpace(c.TopicARN)
		c.Region = strings.TrimSpace(c.Region)
		cfg.SNS = &c
	}
	if cfg.PubSub != nil {
		c := *cfg.PubSub
		c.ProjectID = strings.TrimSpace(c.ProjectID)
		c.Topic = strings.TrimSpace(c.Topic)
		cfg.PubSub = &c
	}

	return cfg
}

// sanitizeHeaders trims and removes empty headers.
func sanitizeHeaders(headers map[string]string) map[string]string {
	if len(headers) == 0 {
		return nil
	}
	out := make(map[string]string, len(headers))
	for k, v := range headers {
		key := strings.TrimSpace(k)
		val := strings.TrimSpace(v)
		if key == "" || val == "" {
			continue
		}
		out[key] = val
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// validatePublisherConfig checks that required fields are present.
func validatePublisherConfig(cfg PublisherConfig) error {
	if cfg.ID == "" {
		return errors.New("id is required")
	}
	if cfg.Type == "" {
		return fmt.Errorf("type is required for publisher %q", cfg.ID)
	}
	if !cfg.EnabledValue() {
		return nil
	}

	switch cfg.Type {
	case TypeEmail:
		if cfg.Email == nil {
			return fmt.Errorf("email config required for publisher %q", cfg.ID)
		}
		if cfg.Email.From == "" {
			return fmt.Errorf("email.from is required for publisher %q", cfg.ID)
		}
		if len(cfg.Email.Recipients()) == 0 {
			return fmt.Errorf("email.to is required for publisher %q", cfg.ID)
		}
		switch cfg.Email.Security {
		case SecuritySSL, SecuritySTARTTLS, SecurityNone:
		default:
			return fmt.Errorf("email.security %q not supported for publisher %q", cfg.Email.Security, cfg.ID)
		}
	case TypeS3:
		if cfg.S3 == nil {
			return fmt.Errorf("s3 config required for publisher %q", cfg.ID)
		}
		if cfg.S3.Bucket == "" {
			return fmt.Errorf("s3.bucket is required for publisher %q", cfg.ID)
		}
		if cfg.S3.Region == "" {
			return fmt.Errorf("s3.region is required for publisher %q", cfg.ID)
		}
		if (cfg.S3.AccessKeyID == "") != (cfg.S3.SecretAccessKey == "") {
			return fmt.Errorf("s3 access_key_id and secret_access_key must be set together for publisher %q", cfg.ID)
		}
	case TypeGCS:
		if cfg.GCS == nil {
			return fmt.Errorf("gcs config required for publisher %q", cfg.ID)
		}
		if cfg.GCS.Bucket == "" {
			return fmt.Errorf("gcs.bucket is required for publisher %q", cfg.ID)
		}
	case TypeHTTP:
		if cfg.HTTP == nil {
			return fmt.Errorf("http config required for publisher %q", cfg.ID)
		}
		if cfg.HTTP.URL == "" {
			return fmt.Errorf("http.url is required for publisher %q", cfg.ID)
		}
	case TypeFile:
		if cfg.File == nil {
			return fmt.Errorf("file config required for publisher %q", cfg.ID)
		}
		if cfg.File.Dir == "" {
			return fmt.Errorf("file.dir is required for publisher %q", cfg.ID)
		}
	case TypeSQS:
		if cfg.SQS == nil {
			return fmt.Errorf("sqs config required for publisher %q", cfg.ID)
		}
		if cfg.SQS.QueueURL == "" {
			return fmt.Errorf("sqs.uri is required for publisher %q", cfg.ID)
		}
		if cfg.SQS.Region == "" {
			return fmt.Errorf("sqs.region is required for publisher %q", cfg.ID)
		}
	case TypeSNS:
		if cfg.SNS == nil {
			return fmt.Errorf("sns config required for publisher %q", cfg.ID)
		}
		if cfg.SNS.TopicARN == "" {
			return fmt.Errorf("sns.topic_arn is required for publisher %q", cfg.ID)
		}
		if cfg.SNS.Region == "" {
			return fmt.Errorf("sns.region is required for publisher %q", cfg.ID)
		}
	case TypePubSub:
		if cfg.PubSub == nil {
			return fmt.Errorf("pubsub config required for publisher %q", cfg.ID)
		}
		if cfg.PubSub.ProjectID == "" || cfg.PubSub.Topic == "" {
			return fmt.Errorf("pubsub.project_id and pubsub.topic are required for publisher %q", cfg.ID)
		}
	}
	return nil
}

// ByID returns the publisher config by id.
func (r *ConfigRegistry) ByID(id string) (PublisherConfig, bool) {
	if r == nil {
		return PublisherConfig{}, false
	}

	id = strings.TrimSpace(id)
	if id == "" {
		return PublisherConfig{}, false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	cfg, ok := r.idx[id]
	return cfg, ok
}

// All returns all configured publishers.
func (r *ConfigRegistry) All() []PublisherConfig {
	if r == nil {
		return nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]PublisherConfig, len(r.publishers))
	copy(out, r.publishers)
	return out
}

// Enabled returns publishers that are enabled.
func (r *ConfigRegistry) Enabled() []PublisherConfig {
	if r == nil {
		return nil
	}

	all := r.All()
	if len(all) == 0 {
		return nil
	}

	out := make([]PublisherConfig, 0, len(all))
	for _, cfg := range all {
		if cfg.EnabledValue() {
			out = append(out, cfg)
		}
	}
	return out
}

// EnabledValue returns enabled flag defaulting to true.
func (cfg PublisherConfig) EnabledValue() bool {
	if cfg.Enabled == nil {
		return true
	}
	return *cfg.Enabled
}
