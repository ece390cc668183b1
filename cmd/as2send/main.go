// Command as2send sends a single Peppol business document over AS2, per
// spec.md §4.5.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/phax/as2-peppol-client/internal/config"
	"github.com/phax/as2-peppol-client/internal/keystore"
	"github.com/phax/as2-peppol-client/pkg/as2client"
	"github.com/phax/as2-peppol-client/pkg/as2transport"
	"github.com/phax/as2-peppol-client/pkg/discovery"
	"github.com/phax/as2-peppol-client/pkg/peppolid"
	"github.com/phax/as2-peppol-client/pkg/security"
	"github.com/phax/as2-peppol-client/pkg/transport"
)

func main() {
	var (
		configPath        = flag.String("config", "", "path to the YAML configuration file")
		senderID          = flag.String("sender", "", "sender AS2 id")
		senderParticipant = flag.String("sender-participant", "", "sender Peppol participant id, scheme::value")
		receiverID        = flag.String("receiver", "", "receiver AS2 id")
		participant       = flag.String("participant", "", "receiver Peppol participant id, scheme::value")
		docType           = flag.String("doctype", "", "Peppol document type id, scheme::value")
		process           = flag.String("process", "", "Peppol process id, scheme::value")
		documentFile      = flag.String("document", "", "path to the business document XML file")
		smpURL            = flag.String("smp-url", "", "explicit SMP URL, bypassing SML lookup")
	)
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	if *configPath == "" || *senderID == "" || *receiverID == "" || *documentFile == "" {
		fmt.Fprintln(os.Stderr, "usage: as2send -config FILE -sender ID -sender-participant SCHEME::VALUE -receiver ID -participant SCHEME::VALUE -doctype SCHEME::VALUE -process SCHEME::VALUE -document FILE")
		os.Exit(2)
	}

	if err := run(logger, runArgs{
		configPath:        *configPath,
		senderID:          *senderID,
		senderParticipant: *senderParticipant,
		receiverID:        *receiverID,
		participant:       *participant,
		docType:           *docType,
		process:           *process,
		documentFile:      *documentFile,
		smpURL:            *smpURL,
	}); err != nil {
		logger.Error("send failed", "error", err)
		os.Exit(1)
	}
}

type runArgs struct {
	configPath        string
	senderID          string
	senderParticipant string
	receiverID        string
	participant       string
	docType           string
	process           string
	documentFile      string
	smpURL            string
}

func run(logger *slog.Logger, args runArgs) error {
	cfg, err := config.Load(args.configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ks, err := keystore.NewProvider(&cfg.KeyStore)
	if err != nil {
		return fmt.Errorf("initializing key store: %w", err)
	}
	defer ks.Close()

	ctx := context.Background()
	senderAlias := cfg.KeyStore.File.SenderAlias
	if senderAlias == "" {
		senderAlias = "sender"
	}

	signerKey, err := ks.GetSigner(ctx, senderAlias)
	if err != nil {
		return fmt.Errorf("loading sender signing key: %w", err)
	}
	senderCert, err := ks.GetCertificate(ctx, senderAlias)
	if err != nil {
		return fmt.Errorf("loading sender certificate: %w", err)
	}

	senderScheme, senderValue, ok := peppolid.ParseURIEncoded(args.senderParticipant)
	if !ok {
		return fmt.Errorf("invalid sender participant id %q, expected scheme::value", args.senderParticipant)
	}
	participantScheme, participantValue, ok := peppolid.ParseURIEncoded(args.participant)
	if !ok {
		return fmt.Errorf("invalid participant id %q, expected scheme::value", args.participant)
	}
	docTypeScheme, docTypeValue, ok := peppolid.ParseURIEncoded(args.docType)
	if !ok {
		return fmt.Errorf("invalid document type id %q, expected scheme::value", args.docType)
	}
	processScheme, processValue, ok := peppolid.ParseURIEncoded(args.process)
	if !ok {
		return fmt.Errorf("invalid process id %q, expected scheme::value", args.process)
	}

	documentFile, err := os.Open(args.documentFile)
	if err != nil {
		return fmt.Errorf("opening business document: %w", err)
	}
	defer documentFile.Close()

	sml := discovery.NewSMLClient(cfg.Discovery.SMLZone)
	resolver := discovery.NewResolver(discovery.NewSMPClient(), sml)

	profiles := make([]discovery.TransportProfile, 0, len(cfg.Discovery.PreferredProfiles))
	for _, p := range cfg.Discovery.PreferredProfiles {
		profiles = append(profiles, discovery.TransportProfile(p))
	}

	builder := as2client.NewBuilder().
		WithSigner(security.NewSMIMESigner(senderCert, signerKey)).
		WithSender(args.senderID, "", senderAlias, peppolid.NewParticipantID(senderScheme, senderValue)).
		WithReceiver(args.receiverID, peppolid.NewParticipantID(participantScheme, participantValue)).
		WithDocumentType(peppolid.NewDocumentTypeID(docTypeScheme, docTypeValue), peppolid.NewProcessID(processScheme, processValue)).
		WithBusinessDocument(documentFile).
		WithSMPResolver(resolver, args.smpURL).
		WithTransportFactory(as2transport.DefaultFactory{HTTPClient: transport.NewHTTPClient(transport.DefaultConfig())})

	if len(profiles) > 0 {
		builder = builder.WithTransportProfiles(profiles)
	}

	resp, err := builder.SendSynchronous(ctx)
	if err != nil {
		return fmt.Errorf("sending message: %w", err)
	}

	logger.Info("message sent",
		"disposition", resp.MDN.Disposition,
		"signature_verified", resp.MDN.SignatureVerified)
	return nil
}
