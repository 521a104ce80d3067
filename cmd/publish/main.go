// publish signs metering samples with METERING_SECRET and sends them to a collector, either over
// gRPC (-transport grpc) or onto the Kafka intake topic (-transport kafka). Samples come from
// -file (a JSON sample or array, "-" for stdin) or are generated with -counter/-resource/-count.
// With -events the file is sent unsigned on the events path.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"

	"metering-collector/internal/config"
	"metering-collector/internal/metering/domain"
	meteringhandler "metering-collector/internal/metering/handler"
	"metering-collector/internal/metering/publish"
	"metering-collector/internal/metering/repository"
	"metering-collector/internal/security"
)

func main() {
	transport := flag.String("transport", "grpc", "grpc or kafka")
	addr := flag.String("addr", "localhost:8080", "collector gRPC address")
	file := flag.String("file", "", `JSON payload file ("-" for stdin); empty generates samples`)
	events := flag.Bool("events", false, "send -file as events instead of samples")
	subject := flag.String("subject", "publish", "token subject when INGEST_TOKEN_SECRET is set")
	counter := flag.String("counter", "cpu", "generated counter_name")
	resource := flag.String("resource", "instance-0001", "generated resource_id")
	volume := flag.Float64("volume", 1, "generated counter_volume step")
	count := flag.Int("count", 1, "number of generated samples")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	var raw []byte
	if *file != "" {
		raw, err = readPayload(*file)
		if err != nil {
			log.Fatalf("publish: %v", err)
		}
	} else if *events {
		log.Fatal("publish: -events requires -file")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var samples []domain.Sample
	if !*events {
		if raw != nil {
			batch, err := domain.DecodeSamples(raw)
			if err != nil {
				log.Fatalf("publish: decode samples: %v", err)
			}
			samples = batch
		} else {
			samples = publish.Generate(publish.Synthetic{
				CounterName: *counter,
				CounterType: "gauge",
				ResourceID:  *resource,
				Source:      "publish",
				Volume:      *volume,
				Count:       *count,
			}, time.Now())
		}
		samples, err = publish.Sign(samples, cfg.MeteringSecret)
		if err != nil {
			log.Fatalf("publish: %v", err)
		}
	}

	switch *transport {
	case "grpc":
		err = sendGRPC(ctx, cfg, *addr, *subject, samples, raw, *events)
	case "kafka":
		err = sendKafka(ctx, cfg, samples, raw, *events)
	default:
		err = fmt.Errorf("unknown transport %q", *transport)
	}
	if err != nil {
		log.Fatalf("publish: %v", err)
	}
}

func readPayload(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}

func sendGRPC(ctx context.Context, cfg *config.Config, addr, subject string, samples []domain.Sample, raw []byte, events bool) error {
	cc, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return err
	}
	defer cc.Close()

	if cfg.AuthEnabled() {
		tokens, err := security.NewTokenProvider(cfg.IngestTokenSecret, cfg.ServiceName, cfg.IngestTokenAudience, security.DefaultTTL)
		if err != nil {
			return err
		}
		token, _, err := tokens.Issue(subject)
		if err != nil {
			return err
		}
		ctx = metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+token)
	}

	client := meteringhandler.NewMeteringServiceClient(cc)
	if events {
		v, err := meteringhandler.PayloadValue(json.RawMessage(raw))
		if err != nil {
			return err
		}
		reply, err := client.RecordEvents(ctx, v)
		if err != nil {
			return err
		}
		log.Printf("events: %v", reply.AsMap())
		return nil
	}
	v, err := meteringhandler.PayloadValue(samples)
	if err != nil {
		return err
	}
	reply, err := client.RecordMeteringData(ctx, v)
	if err != nil {
		return err
	}
	log.Printf("samples: %v", reply.AsMap())
	return nil
}

func sendKafka(ctx context.Context, cfg *config.Config, samples []domain.Sample, raw []byte, events bool) error {
	brokers := cfg.KafkaBrokersList()
	w, err := repository.NewKafkaWriter(brokers, cfg.MeteringKafkaTopic)
	if err != nil {
		return err
	}
	defer w.Close()

	if events {
		msg, err := publish.EventsMessage(raw)
		if err != nil {
			return err
		}
		if err := w.WriteMessages(ctx, msg); err != nil {
			return err
		}
		log.Printf("events written to %s", cfg.MeteringKafkaTopic)
		return nil
	}
	msg, err := publish.SamplesMessage(samples)
	if err != nil {
		return err
	}
	if err := w.WriteMessages(ctx, msg); err != nil {
		return err
	}
	log.Printf("%d samples written to %s (%s)", len(samples), cfg.MeteringKafkaTopic, strings.Join(brokers, ","))
	return nil
}
