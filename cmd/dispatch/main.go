// The dispatch CLI publishes a single call dispatch to the queue, either
// from a metadata JSON file or from individual flags.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/joho/godotenv"

	"github.com/collectwise/collections-ai-platform/cmd/mainconfig"
	"github.com/collectwise/collections-ai-platform/internal/calldata"
	appconfig "github.com/collectwise/collections-ai-platform/internal/config"
	"github.com/collectwise/collections-ai-platform/internal/dispatch"
	"github.com/collectwise/collections-ai-platform/pkg/logging"
)

func main() {
	var (
		file       = flag.String("file", "", "path to a metadata JSON file; flags below are ignored when set")
		name       = flag.String("name", "", "customer name")
		account    = flag.String("account", "", "customer account number")
		amount     = flag.Float64("amount", 0, "debt amount")
		creditor   = flag.String("creditor", "", "original creditor")
		dialTo     = flag.String("to", "", "destination number to dial")
		transferTo = flag.String("transfer-to", "", "human transfer destination (optional)")
	)
	flag.Parse()

	_ = godotenv.Load()
	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)

	md, err := buildMetadata(*file, *name, *account, *amount, *creditor, *dialTo, *transferTo)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var (
		queue dispatch.Queue
		jobs  dispatch.JobRecorder
	)
	if cfg.UseMemoryQueue {
		fmt.Fprintln(os.Stderr, "USE_MEMORY_QUEUE is set; dispatches published here never reach a separate worker process")
		os.Exit(2)
	}
	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}
	queue = dispatch.NewSQSQueue(sqs.NewFromConfig(awsCfg), cfg.DispatchQueueURL)
	if cfg.DispatchJobTable != "" {
		jobs = dispatch.NewJobStore(dynamodb.NewFromConfig(awsCfg), cfg.DispatchJobTable, logger)
	}

	publisher := dispatch.NewPublisher(queue, jobs, logger)
	dispatchID, err := publisher.Enqueue(ctx, md)
	if err != nil {
		logger.Error("failed to publish dispatch", "error", err)
		os.Exit(1)
	}
	fmt.Println(dispatchID)
}

func buildMetadata(file, name, account string, amount float64, creditor, dialTo, transferTo string) (*calldata.CallMetadata, error) {
	if file != "" {
		raw, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read metadata file: %w", err)
		}
		return calldata.Parse(raw)
	}
	md := &calldata.CallMetadata{
		Customer: calldata.Customer{Name: name, AccountNumber: account},
		Debt:     calldata.Debt{Amount: amount, Creditor: creditor},
		Dial:     calldata.Dial{To: dialTo, TransferTo: transferTo},
	}
	if err := md.Validate(); err != nil {
		return nil, err
	}
	return md, nil
}
