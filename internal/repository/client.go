package repository

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
)

// dynamodbAPI is the minimal DynamoDB interface required by Client and Ledger.
// *dynamodb.Client satisfies it; tests substitute an in-memory fake.
type dynamodbAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	BatchGetItem(ctx context.Context, in *dynamodb.BatchGetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchGetItemOutput, error)
	DescribeTable(ctx context.Context, in *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
}

// Tables names the two tables the repository reads and writes. Messages holds
// rooms, messages and the active rooms ledger; Users holds registered users.
type Tables struct {
	Messages string
	Users    string
}

// Client is the chat repository. It holds no mutable state and is safe for
// concurrent use.
type Client struct {
	api    dynamodbAPI
	tables Tables
	ledger RoomLedger
	logger *slog.Logger
	opts   *Options
}

// New creates a repository Client. Unless WithLedger is given, the active
// rooms ledger lives in the messages table.
func New(api dynamodbAPI, tables Tables, opts ...Option) (*Client, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(tables.Messages) == "" {
		return nil, errors.New("repository: messages table name must not be empty")
	}
	if strings.TrimSpace(tables.Users) == "" {
		return nil, errors.New("repository: users table name must not be empty")
	}

	options := newOptions()
	for _, o := range opts {
		o(options)
	}
	if err := options.validate(); err != nil {
		return nil, err
	}

	ledger := options.ledger
	if ledger == nil {
		l, err := NewLedger(api, tables.Messages, options.logger)
		if err != nil {
			return nil, err
		}
		ledger = l
	}

	return &Client{
		api:    api,
		tables: tables,
		ledger: ledger,
		logger: options.logger,
		opts:   options,
	}, nil
}
