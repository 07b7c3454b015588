package main

import (
	"context"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"

	"chat-api/handler"
	"chat-api/internal/integrations/paramstore"
	"chat-api/internal/repository"
	"chat-api/internal/usecase"
)

func main() {
	ctx := context.Background()

	// ---- Configuration (read only here) ----
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel(getEnv("LOG_LEVEL", "info"))}))
	slog.SetDefault(logger)

	messagesTable := getEnv("MESSAGES_TABLE", "messages")
	usersTable := getEnv("USERS_TABLE", "users")
	paramPrefix := strings.TrimSuffix(os.Getenv("PARAM_PREFIX"), "/")
	endpoint := os.Getenv("DYNAMODB_ENDPOINT")
	messageLimit := envInt("MESSAGE_PAGE_SIZE", 50)
	verifySchema := envBool("VERIFY_SCHEMA", true)

	// ---- AWS SDK config ----
	var loadOpts []func(*config.LoadOptions) error
	if region := os.Getenv("AWS_REGION"); region != "" {
		loadOpts = append(loadOpts, config.WithRegion(region))
	}
	if endpoint != "" {
		// DynamoDB Local accepts any credentials.
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider("local", "local", ""),
		))
	}
	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		logger.Error("failed to load AWS config", "err", err)
		os.Exit(1)
	}

	// ---- Parameter overrides ----
	if paramPrefix != "" {
		params, err := paramstore.New(awsssm.NewFromConfig(cfg))
		if err != nil {
			logger.Error("failed to create SSM client", "err", err)
			os.Exit(1)
		}
		messagesTable = mustLookup(ctx, logger, params, paramPrefix+"/messages_table", messagesTable)
		usersTable = mustLookup(ctx, logger, params, paramPrefix+"/users_table", usersTable)
	}

	// ---- Clients ----
	dynamoClient := awsdynamodb.NewFromConfig(cfg, func(o *awsdynamodb.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})
	store, err := repository.New(dynamoClient,
		repository.Tables{Messages: messagesTable, Users: usersTable},
		repository.WithLogger(logger),
		repository.WithDefaultMessageLimit(messageLimit),
	)
	if err != nil {
		logger.Error("failed to create repository", "err", err)
		os.Exit(1)
	}
	if verifySchema {
		if err := store.VerifySchema(ctx); err != nil {
			logger.Error("table schema check failed", "messages_table", messagesTable, "users_table", usersTable, "err", err)
			os.Exit(1)
		}
	}

	// ---- Handler ----
	chatService, err := usecase.NewChatService(store, messageLimit)
	if err != nil {
		logger.Error("failed to create chat service", "err", err)
		os.Exit(1)
	}

	h, err := handler.NewHandler(chatService, logger)
	if err != nil {
		logger.Error("failed to create handler", "err", err)
		os.Exit(1)
	}

	logger.Info("starting chat handler", "messages_table", messagesTable, "users_table", usersTable, "local_endpoint", endpoint != "")
	lambda.Start(h.Handle)
}

func mustLookup(ctx context.Context, logger *slog.Logger, params paramstore.Lookuper, name, fallback string) string {
	v, err := params.Lookup(ctx, name, fallback)
	if err != nil {
		logger.Error("failed to read parameter", "name", name, "err", err)
		os.Exit(1)
	}
	return v
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func logLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return level
}
