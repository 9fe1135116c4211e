package service

type Config struct {
	DatabaseUri             string  `envconfig:"DATABASE_URI" required:"true"`
	DatabaseMaxConns        int     `envconfig:"DATABASE_MAX_CONNS" default:"10"`
	DatabaseMaxIdleConns    int     `envconfig:"DATABASE_MAX_IDLE_CONNS" default:"5"`
	DatabaseConnMaxLifetime int     `envconfig:"DATABASE_CONN_MAX_LIFETIME" default:"1800"` // 30 minutes
	SentryDSN               string  `envconfig:"SENTRY_DSN"`
	SentryTracesSampleRate  float64 `envconfig:"SENTRY_TRACES_SAMPLE_RATE"`
	DatadogAgentUrl         string  `envconfig:"DATADOG_AGENT_URL"`
	LogFilePath             string  `envconfig:"LOG_FILE_PATH"`
	JWTSecret               []byte  `envconfig:"JWT_SECRET" required:"true"`
	AdminToken              string  `envconfig:"ADMIN_TOKEN"`
	JWTRefreshTokenExpiry   int     `envconfig:"JWT_REFRESH_EXPIRY" default:"604800"` // in seconds, default 7 days
	JWTAccessTokenExpiry    int     `envconfig:"JWT_ACCESS_EXPIRY" default:"172800"`  // in seconds, default 2 days
	Host                    string  `envconfig:"HOST" default:"localhost:3000"`
	Port                    int     `envconfig:"PORT" default:"3000"`
	DefaultRateLimit        int     `envconfig:"DEFAULT_RATE_LIMIT" default:"10"`
	StrictRateLimit         int     `envconfig:"STRICT_RATE_LIMIT" default:"10"`
	BurstRateLimit          int     `envconfig:"BURST_RATE_LIMIT" default:"1"`
	EnablePrometheus        bool    `envconfig:"ENABLE_PROMETHEUS" default:"false"`
	PrometheusPort          int     `envconfig:"PROMETHEUS_PORT" default:"9092"`
	WebhookUrl              string  `envconfig:"WEBHOOK_URL"`
	AllowAccountCreation    bool    `envconfig:"ALLOW_ACCOUNT_CREATION" default:"true"`
	MinPasswordEntropy      int     `envconfig:"MIN_PASSWORD_ENTROPY" default:"0"`

	Currency string `envconfig:"CURRENCY" default:"XAF"`
	// The platform fee is expressed in basis points to keep all money math in
	// integers. 300 bps = 3%, deducted from the seller's payout, or from the
	// refund when a dispute resolves in the buyer's favor.
	ServiceFeeBps     int   `envconfig:"SERVICE_FEE_BPS" default:"300"`
	CommissionRateBps int   `envconfig:"COMMISSION_RATE_BPS" default:"50"`
	MinWithdrawal     int64 `envconfig:"MIN_WITHDRAWAL" default:"2000"`
	// how often the expiry sweeper flips overdue pending invoices, in seconds
	ExpirySweepInterval int `envconfig:"EXPIRY_SWEEP_INTERVAL" default:"60"`

	RabbitMQUri                      string `envconfig:"RABBITMQ_URI"`
	RabbitMQEventExchange            string `envconfig:"RABBITMQ_EVENT_EXCHANGE" default:"escrow_event"`
	RabbitMQPaymentExchange          string `envconfig:"RABBITMQ_PAYMENT_EXCHANGE" default:"momo_payment"`
	RabbitMQPaymentConsumerQueueName string `envconfig:"RABBITMQ_PAYMENT_CONSUMER_QUEUE_NAME" default:"momo_payment_consumer"`
}
