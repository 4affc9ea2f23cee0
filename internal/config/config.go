package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/sheikh-saqib/room-billing-ledger/internal/ledger"
)

const (
	StoreMemory   = "memory"
	StoreFile     = "file"
	StorePostgres = "postgres"
	StoreMongo    = "mongo"

	PublisherNone  = "none"
	PublisherKafka = "kafka"
	PublisherNats  = "nats"
)

// Config holds every setting the binaries accept. Flags bind directly into it
// and fall back to environment variables.
type Config struct {
	BindAddress string
	LogLevel    string
	LogFormat   string

	Rooms           []string
	ElectricityRate string
	WaterRate       string
	ServiceFee      string

	Store         string
	FilePath      string
	DatabaseURL   string
	MongoURI      string
	MongoDatabase string

	Publisher         string
	KafkaBrokers      []string
	KafkaTopic        string
	NatsURL           string
	NatsSubjectPrefix string
}

func Default() *Config {
	rates := ledger.DefaultRates()
	return &Config{
		BindAddress:       "localhost:8080",
		LogLevel:          "info",
		LogFormat:         "text",
		Rooms:             []string{"Room 101", "Room 102", "Room 103"},
		ElectricityRate:   rates.Electricity.String(),
		WaterRate:         rates.Water.String(),
		ServiceFee:        rates.ServiceFee.String(),
		Store:             StoreFile,
		FilePath:          "data/rooms.json",
		MongoDatabase:     "roomledger",
		Publisher:         PublisherNone,
		KafkaBrokers:      []string{"localhost:9092"},
		KafkaTopic:        "room_events",
		NatsURL:           "nats://127.0.0.1:4222",
		NatsSubjectPrefix: "roomledger",
	}
}

// LoadDotEnv reads .env into the process environment. A missing file is fine.
func LoadDotEnv(filenames ...string) error {
	err := godotenv.Load(filenames...)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("loading .env: %w", err)
	}
	return nil
}

// Flags returns the cli flags bound to c.
func (c *Config) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "bind-address",
			EnvVars:     []string{"BIND_ADDRESS"},
			Value:       c.BindAddress,
			Destination: &(c.BindAddress),
		},
		&cli.StringFlag{
			Name:        "log-level",
			EnvVars:     []string{"LOG_LEVEL"},
			Value:       c.LogLevel,
			Destination: &(c.LogLevel),
		},
		&cli.StringFlag{
			Name:        "log-format",
			Usage:       "text or json",
			EnvVars:     []string{"LOG_FORMAT"},
			Value:       c.LogFormat,
			Destination: &(c.LogFormat),
		},
		&cli.StringSliceFlag{
			Name:    "rooms",
			Usage:   "comma separated room identifiers",
			EnvVars: []string{"ROOMS"},
			Value:   cli.NewStringSlice(c.Rooms...),
		},
		&cli.StringFlag{
			Name:        "electricity-rate",
			Usage:       "price per kWh",
			EnvVars:     []string{"ELECTRICITY_RATE"},
			Value:       c.ElectricityRate,
			Destination: &(c.ElectricityRate),
		},
		&cli.StringFlag{
			Name:        "water-rate",
			Usage:       "price per m3",
			EnvVars:     []string{"WATER_RATE"},
			Value:       c.WaterRate,
			Destination: &(c.WaterRate),
		},
		&cli.StringFlag{
			Name:        "service-fee",
			Usage:       "flat price of one other-service charge",
			EnvVars:     []string{"SERVICE_FEE"},
			Value:       c.ServiceFee,
			Destination: &(c.ServiceFee),
		},
		&cli.StringFlag{
			Name:        "store",
			Usage:       "memory, file, postgres or mongo",
			EnvVars:     []string{"STORE"},
			Value:       c.Store,
			Destination: &(c.Store),
		},
		&cli.StringFlag{
			Name:        "file-path",
			EnvVars:     []string{"FILE_PATH"},
			Value:       c.FilePath,
			Destination: &(c.FilePath),
		},
		&cli.StringFlag{
			Name:        "database-url",
			EnvVars:     []string{"DATABASE_URL"},
			Value:       c.DatabaseURL,
			Destination: &(c.DatabaseURL),
		},
		&cli.StringFlag{
			Name:        "mongo-uri",
			EnvVars:     []string{"MONGODB_URI"},
			Value:       c.MongoURI,
			Destination: &(c.MongoURI),
		},
		&cli.StringFlag{
			Name:        "mongo-database",
			EnvVars:     []string{"MONGODB_DATABASE"},
			Value:       c.MongoDatabase,
			Destination: &(c.MongoDatabase),
		},
		&cli.StringFlag{
			Name:        "publisher",
			Usage:       "none, kafka or nats",
			EnvVars:     []string{"PUBLISHER"},
			Value:       c.Publisher,
			Destination: &(c.Publisher),
		},
		&cli.StringSliceFlag{
			Name:    "kafka-brokers",
			EnvVars: []string{"KAFKA_BROKERS"},
			Value:   cli.NewStringSlice(c.KafkaBrokers...),
		},
		&cli.StringFlag{
			Name:        "kafka-topic",
			EnvVars:     []string{"KAFKA_TOPIC"},
			Value:       c.KafkaTopic,
			Destination: &(c.KafkaTopic),
		},
		&cli.StringFlag{
			Name:        "nats-url",
			EnvVars:     []string{"NATS_URL"},
			Value:       c.NatsURL,
			Destination: &(c.NatsURL),
		},
		&cli.StringFlag{
			Name:        "nats-subject-prefix",
			EnvVars:     []string{"NATS_SUBJECT_PREFIX"},
			Value:       c.NatsSubjectPrefix,
			Destination: &(c.NatsSubjectPrefix),
		},
	}
}

// FromContext copies the slice flags, which have no Destination, and validates.
func (c *Config) FromContext(ctx *cli.Context) error {
	c.Rooms = trimAll(ctx.StringSlice("rooms"))
	c.KafkaBrokers = trimAll(ctx.StringSlice("kafka-brokers"))
	return c.Validate()
}

func (c *Config) Validate() error {
	if len(c.Rooms) == 0 {
		return errors.New("at least one room is required")
	}
	if _, err := c.Rates(); err != nil {
		return err
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return err
	}

	switch c.Store {
	case StoreMemory:
	case StoreFile:
		if c.FilePath == "" {
			return errors.New("file-path is required for the file store")
		}
	case StorePostgres:
		if c.DatabaseURL == "" {
			return errors.New("database-url is required for the postgres store")
		}
	case StoreMongo:
		if c.MongoURI == "" || c.MongoDatabase == "" {
			return errors.New("mongo-uri and mongo-database are required for the mongo store")
		}
	default:
		return fmt.Errorf("unknown store %q", c.Store)
	}

	switch c.Publisher {
	case PublisherNone:
	case PublisherKafka:
		if len(c.KafkaBrokers) == 0 || c.KafkaTopic == "" {
			return errors.New("kafka-brokers and kafka-topic are required for the kafka publisher")
		}
	case PublisherNats:
		if c.NatsURL == "" {
			return errors.New("nats-url is required for the nats publisher")
		}
	default:
		return fmt.Errorf("unknown publisher %q", c.Publisher)
	}
	return nil
}

// Rates parses the configured prices.
func (c *Config) Rates() (ledger.Rates, error) {
	var (
		rates ledger.Rates
		err   error
	)
	if rates.Electricity, err = parseAmount("electricity-rate", c.ElectricityRate); err != nil {
		return rates, err
	}
	if rates.Water, err = parseAmount("water-rate", c.WaterRate); err != nil {
		return rates, err
	}
	if rates.ServiceFee, err = parseAmount("service-fee", c.ServiceFee); err != nil {
		return rates, err
	}
	return rates, rates.Validate()
}

// Logger builds a logrus logger from the log settings.
func (c *Config) Logger() (*logrus.Logger, error) {
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, err
	}
	log := logrus.New()
	log.SetLevel(level)
	if c.LogFormat == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return log, nil
}

func parseAmount(name, raw string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s: %w", name, err)
	}
	return d, nil
}

func trimAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
