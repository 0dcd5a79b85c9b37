package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/A-b-h-i-n-a-v-1-9/new-block-cert-main/internal/apperr"
	"github.com/A-b-h-i-n-a-v-1-9/new-block-cert-main/internal/archive"
	"github.com/A-b-h-i-n-a-v-1-9/new-block-cert-main/internal/blockchain"
	"github.com/A-b-h-i-n-a-v-1-9/new-block-cert-main/internal/certificate/template"
	"github.com/A-b-h-i-n-a-v-1-9/new-block-cert-main/internal/kafka"
	"github.com/A-b-h-i-n-a-v-1-9/new-block-cert-main/internal/logger"
	"github.com/A-b-h-i-n-a-v-1-9/new-block-cert-main/internal/metrics"
	"github.com/A-b-h-i-n-a-v-1-9/new-block-cert-main/internal/models"
	"github.com/A-b-h-i-n-a-v-1-9/new-block-cert-main/internal/signer"
	"github.com/A-b-h-i-n-a-v-1-9/new-block-cert-main/internal/storage"

	"github.com/google/uuid"
)

type CertificateStore interface {
	GetEvent(ctx context.Context, id string) (*models.Event, error)
	ListAttendance(ctx context.Context, eventID string) ([]models.Attendance, error)
	CertificateExists(ctx context.Context, eventID, email string) (bool, error)
	GetParticipant(ctx context.Context, email string) (*models.Participant, error)
	InsertCertificate(ctx context.Context, cert *models.Certificate) error
	GetByCertID(ctx context.Context, certID string) (*models.Certificate, error)
	AttachPDF(ctx context.Context, certID, hash string) (bool, error)
	ListCertificates(ctx context.Context) ([]models.Certificate, error)
	ListMissingArtifacts(ctx context.Context, limit int) ([]string, error)
}

// ArtifactQueue accepts PDF render jobs for certificates that were just issued.
type ArtifactQueue interface {
	Enqueue(ctx context.Context, job models.ArtifactJob) error
}

type Service struct {
	DB        CertificateStore
	Chain     blockchain.Client
	Storage   storage.Gateway
	Signers   signer.Locker
	Artifacts ArtifactQueue
	Archive   archive.Archive
	Publisher kafka.Publisher
	Topic     string
	Renderer  *template.CertificatePDFGenerator
	Metrics   *metrics.Metrics
	Logger    *logger.Logger
	// PublicBaseURL prefixes the verification link printed on certificates.
	PublicBaseURL string

	now func() time.Time
}

type Option func(*Service)

func WithSignerLock(l signer.Locker) Option { return func(s *Service) { s.Signers = l } }

func WithArtifactQueue(q ArtifactQueue) Option { return func(s *Service) { s.Artifacts = q } }

func WithArchive(a archive.Archive) Option { return func(s *Service) { s.Archive = a } }

func WithPublisher(p kafka.Publisher, topic string) Option {
	return func(s *Service) {
		s.Publisher = p
		s.Topic = topic
	}
}

func WithRenderer(r *template.CertificatePDFGenerator) Option {
	return func(s *Service) { s.Renderer = r }
}

func WithMetrics(m *metrics.Metrics) Option { return func(s *Service) { s.Metrics = m } }

func WithPublicBaseURL(url string) Option {
	return func(s *Service) { s.PublicBaseURL = strings.TrimRight(url, "/") }
}

func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

func NewService(db CertificateStore, chain blockchain.Client, store storage.Gateway, log *logger.Logger, opts ...Option) *Service {
	s := &Service{
		DB:        db,
		Chain:     chain,
		Storage:   store,
		Signers:   signer.NewLocalLock(),
		Archive:   archive.NewMemory(),
		Publisher: kafka.NopPublisher{},
		Renderer:  template.NewCertificatePDFGenerator(""),
		Logger:    log,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Mint issues a certificate to every attendee of an event, one attendee at a time. Failures are
// recorded per attendee and never abort the run. Attendees that already hold a certificate are
// reported as already_issued, so a run can be repeated safely.
func (s *Service) Mint(ctx context.Context, eventID string) (*models.MintReport, error) {
	event, err := s.DB.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}

	attendance, err := s.DB.ListAttendance(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to load attendance: %w", err)
	}
	if len(attendance) == 0 {
		return nil, apperr.EmptyAttendance("no attendance records found for event %s", eventID)
	}

	// a started run finishes even if the caller goes away
	ctx = context.WithoutCancel(ctx)

	report := &models.MintReport{
		RunID:      uuid.New().String(),
		EventID:    event.ID,
		EventTitle: event.Title,
		StartedAt:  s.now(),
		Results:    make([]models.AttendeeResult, 0, len(attendance)),
	}
	s.Logger.Info("MINT", fmt.Sprintf("Minting %d certificates for %s (%s mode)", len(attendance), event.Title, s.Chain.Mode()))

	for _, att := range attendance {
		result := s.mintOne(ctx, event, att)
		s.Metrics.IncMintOutcome(string(result.Status))
		report.Results = append(report.Results, result)
	}
	report.FinishedAt = s.now()

	if err := s.Archive.SaveRun(ctx, report); err != nil {
		s.Logger.Warn("MINT", fmt.Sprintf("Failed to archive run %s: %v", report.RunID, err))
	}

	summary := report.Summary()
	s.Logger.Info("MINT", fmt.Sprintf("Run %s finished: %d success, %d already issued, %d without profile, %d failed",
		report.RunID,
		summary[models.OutcomeSuccess],
		summary[models.OutcomeAlreadyIssued],
		summary[models.OutcomeParticipantNotFound],
		summary[models.OutcomeFailed]))
	return report, nil
}

func (s *Service) mintOne(ctx context.Context, event *models.Event, att models.Attendance) models.AttendeeResult {
	email := att.ParticipantEmail
	result := models.AttendeeResult{ParticipantEmail: email}

	exists, err := s.DB.CertificateExists(ctx, event.ID, email)
	if err != nil {
		return failed(result, fmt.Errorf("check existing certificate: %w", err))
	}
	if exists {
		result.Status = models.OutcomeAlreadyIssued
		return result
	}

	participant, err := s.DB.GetParticipant(ctx, email)
	if errors.Is(err, apperr.ErrNotFound) {
		s.Logger.Warn("MINT", fmt.Sprintf("No participant profile for %s, skipping", email))
		result.Status = models.OutcomeParticipantNotFound
		return result
	}
	if err != nil {
		return failed(result, fmt.Errorf("load participant: %w", err))
	}

	wallet := participant.IssuanceWallet()
	issuedAt := s.now()

	displayName := participant.Name
	if displayName == "" {
		displayName = "Participant"
	}
	metadataHash, err := s.Storage.UploadMetadata(ctx, models.CertificateMetadata{
		ParticipantEmail: email,
		ParticipantName:  participant.Name,
		EventTitle:       event.Title,
		IssuedAt:         issuedAt.UTC().Format(time.RFC3339),
	}, displayName+"_"+event.Title)
	if err != nil {
		return failed(result, fmt.Errorf("metadata upload: %w", err))
	}
	result.MetadataHash = metadataHash

	tx, err := s.issue(ctx, blockchain.IssueRequest{
		StudentName: email,
		EventRef:    event.Title,
		ContentHash: metadataHash,
		Recipient:   wallet,
	})
	if err != nil {
		return failed(result, fmt.Errorf("chain issuance: %w", err))
	}

	cert := &models.Certificate{
		ID:               uuid.New().String(),
		EventID:          event.ID,
		ParticipantEmail: email,
		CertID:           tx.CertID,
		WalletAddress:    wallet,
		MetadataIPFSHash: metadataHash,
		TxHash:           tx.TxHash,
		BlockNumber:      tx.BlockNumber,
		Mode:             tx.Mode,
		IssuedAt:         issuedAt,
		CreatedAt:        issuedAt,
	}
	if err := s.DB.InsertCertificate(ctx, cert); err != nil {
		if errors.Is(err, apperr.ErrConflict) {
			// a concurrent run won the insert; this transaction stays on chain unreferenced
			s.Logger.Warn("MINT", fmt.Sprintf("Certificate for %s inserted concurrently, orphaned tx %s", email, tx.TxHash))
			result.Status = models.OutcomeAlreadyIssued
			return result
		}
		return failed(result, fmt.Errorf("save certificate: %w", err))
	}

	result.Status = models.OutcomeSuccess
	result.CertID = tx.CertID
	result.TxHash = tx.TxHash
	result.ExplorerURL = tx.ExplorerURL
	result.Mode = tx.Mode
	s.Logger.LogChain("ISSUED", tx.CertID, fmt.Sprintf("%s for %s tx=%s", event.Title, email, tx.TxHash))

	s.requestArtifact(ctx, tx.CertID)

	if err := s.Publisher.Publish(ctx, s.Topic, cert.CertID, models.CertificateIssuedEvent{
		EventID:          cert.EventID,
		ParticipantEmail: cert.ParticipantEmail,
		CertID:           cert.CertID,
		TxHash:           cert.TxHash,
		MetadataHash:     cert.MetadataIPFSHash,
		Mode:             cert.Mode,
		IssuedAt:         cert.IssuedAt,
	}); err != nil {
		s.Logger.Warn("MINT", fmt.Sprintf("Failed to publish issuance of %s: %v", cert.CertID, err))
	}
	return result
}

// issue submits one issuance while holding the signer lock, so no two transactions from the
// same key are ever in flight together.
func (s *Service) issue(ctx context.Context, req blockchain.IssueRequest) (*blockchain.TxResult, error) {
	release, err := s.Signers.Lock(ctx, s.Chain.SignerAddress())
	if err != nil {
		return nil, fmt.Errorf("acquire signer lock: %w", err)
	}
	defer release()

	start := time.Now()
	tx, err := s.Chain.IssueCertificate(ctx, req)
	s.Metrics.ObserveChain("issue", s.Chain.Mode(), time.Since(start))
	return tx, err
}

func (s *Service) requestArtifact(ctx context.Context, certID string) {
	if s.Artifacts == nil {
		return
	}
	if err := s.Artifacts.Enqueue(ctx, models.ArtifactJob{CertID: certID, EnqueuedAt: s.now()}); err != nil {
		s.Logger.Warn("ARTIFACT", fmt.Sprintf("Could not queue PDF for %s: %v", certID, err))
	}
}

func failed(result models.AttendeeResult, err error) models.AttendeeResult {
	result.Status = models.OutcomeFailed
	result.Reason = err.Error()
	return result
}

type Verification struct {
	Blockchain *blockchain.OnChainCertificate `json:"blockchain"`
	Database   *models.Certificate            `json:"database"`
	Verified   bool                           `json:"verified"`
}

// Verify succeeds only when the chain and the local store both know certID.
func (s *Service) Verify(ctx context.Context, certID string) (*Verification, error) {
	certID = strings.TrimSpace(certID)
	if certID == "" {
		return nil, apperr.Validation("certId is required")
	}

	start := time.Now()
	onChain, err := s.Chain.VerifyCertificate(ctx, certID)
	s.Metrics.ObserveChain("verify", s.Chain.Mode(), time.Since(start))
	if err != nil {
		s.Logger.LogChain("VERIFY_FAILED", certID, err.Error())
		return nil, apperr.Wrap(apperr.KindNotFound, "certificate not found or invalid", err)
	}

	stored, err := s.DB.GetByCertID(ctx, certID)
	if err != nil {
		s.Logger.LogDatabase("VERIFY_FAILED", "certificates", fmt.Sprintf("%s: %v", certID, err))
		return nil, apperr.Wrap(apperr.KindNotFound, "certificate not found or invalid", err)
	}

	return &Verification{Blockchain: onChain, Database: stored, Verified: true}, nil
}

// RenderPDF draws the certificate on demand. A certificate whose artifact was never pinned is
// queued for pinning again.
func (s *Service) RenderPDF(ctx context.Context, certID string) ([]byte, string, error) {
	cert, err := s.DB.GetByCertID(ctx, certID)
	if err != nil {
		return nil, "", err
	}

	pdf, fileName, err := s.render(ctx, cert)
	if err != nil {
		return nil, "", err
	}

	if cert.PDFIPFSHash == "" {
		s.requestArtifact(ctx, cert.CertID)
	}
	return pdf, fileName, nil
}

// ProcessArtifact renders and pins the PDF of one certificate and attaches its hash.
// Certificates that already carry a PDF hash are left alone.
func (s *Service) ProcessArtifact(ctx context.Context, certID string) error {
	cert, err := s.DB.GetByCertID(ctx, certID)
	if err != nil {
		return err
	}
	if cert.PDFIPFSHash != "" {
		return nil
	}

	pdf, fileName, err := s.render(ctx, cert)
	if err != nil {
		return err
	}

	hash, err := s.Storage.UploadArtifact(ctx, pdf, fileName)
	if err != nil {
		return err
	}

	attached, err := s.DB.AttachPDF(ctx, certID, hash)
	if err != nil {
		return err
	}
	if attached {
		s.Logger.LogStorage("PDF_ATTACHED", fileName, hash)
	}
	return nil
}

// PinPDF renders and pins the artifact now, instead of waiting for a worker, and returns its hash.
func (s *Service) PinPDF(ctx context.Context, certID string) (string, error) {
	if err := s.ProcessArtifact(ctx, certID); err != nil {
		return "", err
	}
	cert, err := s.DB.GetByCertID(ctx, certID)
	if err != nil {
		return "", err
	}
	return cert.PDFIPFSHash, nil
}

func (s *Service) render(ctx context.Context, cert *models.Certificate) ([]byte, string, error) {
	name := cert.ParticipantEmail
	fileStem := strings.SplitN(cert.ParticipantEmail, "@", 2)[0]
	if p, err := s.DB.GetParticipant(ctx, cert.ParticipantEmail); err == nil && p.Name != "" {
		name = p.Name
		fileStem = p.Name
	} else if err != nil && !errors.Is(err, apperr.ErrNotFound) {
		return nil, "", fmt.Errorf("load participant: %w", err)
	}

	eventTitle := ""
	if cert.Event != nil {
		eventTitle = cert.Event.Title
	}

	data := template.CertificateData{
		ParticipantName: name,
		EventTitle:      eventTitle,
		CertID:          cert.CertID,
		TxHash:          cert.TxHash,
		IssuedAt:        cert.IssuedAt,
		Mode:            cert.Mode,
	}
	if s.PublicBaseURL != "" {
		data.VerifyURL = s.PublicBaseURL + "/certificates/verify/" + cert.CertID
	}

	pdf, err := s.Renderer.Generate(data)
	if err != nil {
		return nil, "", fmt.Errorf("render certificate %s: %w", cert.CertID, err)
	}
	return pdf, template.FileName(fileStem, eventTitle), nil
}

// RequeueMissingArtifacts queues a job for up to limit certificates that still have no PDF.
func (s *Service) RequeueMissingArtifacts(ctx context.Context, limit int) (int, error) {
	if s.Artifacts == nil {
		return 0, nil
	}
	ids, err := s.DB.ListMissingArtifacts(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("list certificates without pdf: %w", err)
	}
	queued := 0
	for _, id := range ids {
		if err := s.Artifacts.Enqueue(ctx, models.ArtifactJob{CertID: id, EnqueuedAt: s.now()}); err != nil {
			return queued, err
		}
		queued++
	}
	return queued, nil
}

func (s *Service) ListCertificates(ctx context.Context) ([]models.Certificate, error) {
	return s.DB.ListCertificates(ctx)
}

func (s *Service) MintRuns(ctx context.Context, eventID string) ([]models.MintReport, error) {
	return s.Archive.ListRuns(ctx, eventID)
}

func (s *Service) NetworkInfo(ctx context.Context) blockchain.NetworkInfo {
	return s.Chain.NetworkInfo(ctx)
}
