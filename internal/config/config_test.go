package config

import "testing"

func validConfig() Config {
	return Config{
		QuoteGenerator: "sandbox",
		Exchanges: map[string]ExchangeConfig{
			"hyperliquid": {Symbol: "ETH", Type: "trading"},
		},
		Parameters: map[string]ParametersConfig{
			"sandbox": {TotalOrders: 4, MaxPosition: 1000},
		},
		Venue:  VenueConfig{BaseURL: "https://api.hyperliquid.xyz", WSURL: "wss://api.hyperliquid.xyz/ws"},
		DryRun: true,
	}
}

func TestValidateAcceptsValidConfig(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestValidateRejectsUnknownQuoteGenerator(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	cfg.QuoteGenerator = "turbo"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unknown quote_generator")
	}
}

func TestValidateRequiresParametersForSelectedGenerator(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	cfg.QuoteGenerator = "plain"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error when parameters.plain is missing")
	}
}

func TestValidateRequiresTotalOrders(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	p := cfg.Parameters["sandbox"]
	p.TotalOrders = 0
	cfg.Parameters["sandbox"] = p
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing total_orders")
	}
}

func TestValidateRejectsOddTotalOrders(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	p := cfg.Parameters["sandbox"]
	p.TotalOrders = 3
	cfg.Parameters["sandbox"] = p
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for odd total_orders")
	}
}

func TestValidateRequiresMaxPosition(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	p := cfg.Parameters["sandbox"]
	p.MaxPosition = 0
	cfg.Parameters["sandbox"] = p
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing max_position")
	}
}

func TestValidateRequiresAtLeastOneExchange(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	cfg.Exchanges = nil
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for empty exchanges map")
	}
}

func TestValidateRejectsBadExchangeType(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	cfg.Exchanges["hyperliquid"] = ExchangeConfig{Symbol: "ETH", Type: "bogus"}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for invalid exchange type")
	}
}

func TestValidateRequiresVenueURLs(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	cfg.Venue.BaseURL = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing venue.base_url")
	}
}

func TestValidateRequiresSecretsUnlessDryRun(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	cfg.DryRun = false
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error when secrets are unset and dry_run is false")
	}
}
