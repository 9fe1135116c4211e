package service

import (
	"github.com/uptrace/bun"
	"github.com/zangapay/escrow.go/rabbitmq"
	"github.com/ziflex/lecho/v3"
)

type EscrowService struct {
	Config         *Config
	DB             *bun.DB
	Logger         *lecho.Logger
	EventPubSub    *Pubsub
	RabbitMQClient rabbitmq.Client
}
