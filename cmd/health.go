package main

import (
	"context"
	"time"

	"github.com/naughtygopher/proberesponder"
	"github.com/naughtygopher/proberesponder/extensions/depprober"
)

const (
	dependencyIDKafka    = "kafka"
	dependencyIDMongo    = "mongodb"
	dependencyIDPostgres = "postgres"
)

const healthKeyKafkaLastMessage = "kafka->last-message-at"

type messageTracker interface {
	ReceivedLastMessageAt() *time.Time
}

type pinger interface {
	Ping(ctx context.Context) error
}

// kafkaChecker pings the brokers and, when reachable, reports when the subscriber last
// received records.
func kafkaChecker(
	client pinger,
	tracker messageTracker,
	report func(key, value string),
) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		err := client.Ping(ctx)
		if err != nil {
			return err
		}

		lastAt := "never"
		if last := tracker.ReceivedLastMessageAt(); last != nil {
			lastAt = last.Format(time.RFC3339)
		}
		report(healthKeyKafkaLastMessage, lastAt)

		return nil
	}
}

// dependencyProbes returns a probe for every initialized dependency in deps.
func dependencyProbes(
	deps *dependencies,
	tracker messageTracker,
	report func(key, value string),
) []depprober.Prober {
	ready := []proberesponder.Statuskey{proberesponder.StatusReady}
	probes := make([]depprober.Prober, 0, 2)

	if deps.pgPool != nil {
		probes = append(probes, &depprober.Probe{
			ID:               dependencyIDPostgres,
			AffectedStatuses: ready,
			Checker: depprober.CheckerFunc(func(ctx context.Context) error {
				return deps.pgPool.Ping(ctx)
			}),
		})
	}

	if deps.mongoClient != nil {
		probes = append(probes, &depprober.Probe{
			ID:               dependencyIDMongo,
			AffectedStatuses: ready,
			Checker: depprober.CheckerFunc(func(ctx context.Context) error {
				return deps.mongoClient.Ping(ctx, nil)
			}),
		})
	}

	if deps.kafkaClient != nil {
		probes = append(probes, &depprober.Probe{
			ID:               dependencyIDKafka,
			AffectedStatuses: ready,
			Checker:          depprober.CheckerFunc(kafkaChecker(deps.kafkaClient, tracker, report)),
		})
	}

	return probes
}

func healthStatus( //nolint:ireturn // returning interface because that's what's exposed by the package
	delay time.Duration,
	pstatus *proberesponder.ProbeResponder,
	deps *dependencies,
	tracker messageTracker,
) depprober.Stopper {
	/*
		Important: having regular pings would keep the respective clients "active".
		This may or may not be a desirable behavior.
		e.g. it might be better to let idle PostgreSQL connections be closed if there's no
		activity, so that the server would only need to deal with fewer connections.
	*/
	report := func(key, value string) {
		pstatus.AppendHealthResponse(key, value)
	}
	return depprober.Start(delay, pstatus, dependencyProbes(deps, tracker, report)...)
}
