package anchoring

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Maphikza/iqube-ops/internal/ledger"
	"github.com/Maphikza/iqube-ops/internal/logger"
)

// DefaultSender is the sender recorded on DVN messages submitted from here.
const DefaultSender = "ops-console"

// ReadyAttestations is the attestation count at which a message is ready.
const ReadyAttestations = 2

// DefaultValidators attest a message when no validators are given.
var DefaultValidators = []string{"v1", "v2"}

// noPendingReceipts is what batch() returns when there was nothing to batch.
const noPendingReceipts = "No pending receipts"

var ErrEmptyReceipt = errors.New("ledger returned an empty receipt id")

// Result kinds written to the result log.
const (
	KindSubmit     = "anchor_submit"
	KindMint       = "ledger_mint"
	KindAnchorNow  = "anchor_now"
	KindDVNSubmit  = "dvn_submit"
	KindDVNAttest  = "dvn_attest"
	KindBurnState  = "burn_state"
	KindAnchorTx   = "anchor_tx"
	KindBTCAddress = "btc_address"
	KindInitEVMRPC = "evm_rpc_init"
)

// Recorder appends an entry to the result log.
type Recorder interface {
	RecordResult(kind string, data interface{}, opErr error) error
}

// Publisher announces completed write operations.
type Publisher interface {
	Publish(subject string, v interface{}) error
}

type SubmitResult struct {
	ReceiptID string `json:"receiptId"`
	BatchID   string `json:"batchId,omitempty"`
	Anchor    string `json:"anchor,omitempty"`
}

type MintResult struct {
	ReceiptID string `json:"receiptId"`
}

type AnchorResult struct {
	BatchRoot    string `json:"batchRoot"`
	AnchorResult string `json:"anchorTxId"`
}

type MessageStatus struct {
	Attestations int  `json:"attestations"`
	Ready        bool `json:"ready"`
}

// Service wraps the ledger write paths. Unlike status reads, every method
// returns the underlying error.
type Service struct {
	ledger   *ledger.Client
	recorder Recorder
	events   Publisher
}

type Option func(*Service)

func WithRecorder(r Recorder) Option {
	return func(s *Service) { s.recorder = r }
}

func WithPublisher(p Publisher) Option {
	return func(s *Service) { s.events = p }
}

func NewService(client *ledger.Client, opts ...Option) *Service {
	s := &Service{ledger: client}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// record writes the outcome to the result log and, on success, publishes it.
func (s *Service) record(kind string, data interface{}, opErr error) {
	if s.recorder != nil {
		if err := s.recorder.RecordResult(kind, data, opErr); err != nil {
			logger.Warn("Failed to record result", "kind", kind, "error", err)
		}
	}
	if opErr == nil && s.events != nil {
		if err := s.events.Publish(kind, data); err != nil {
			logger.Warn("Failed to publish event", "kind", kind, "error", err)
		}
	}
}

// isBatchRoot reports whether the text returned by batch() names a new batch.
func isBatchRoot(s string) bool {
	s = strings.TrimSpace(s)
	return s != "" && !strings.EqualFold(s, noPendingReceipts)
}

// SubmitForAnchoring issues a receipt for data, then batches and, when a
// batch was formed, anchors it. metadata is only kept in the result log.
func (s *Service) SubmitForAnchoring(ctx context.Context, data, metadata string) (SubmitResult, error) {
	res, err := s.submit(ctx, data)
	s.record(KindSubmit, map[string]interface{}{
		"receiptId": res.ReceiptID,
		"batchId":   res.BatchID,
		"anchor":    res.Anchor,
		"metadata":  metadata,
	}, err)
	return res, err
}

func (s *Service) submit(ctx context.Context, data string) (SubmitResult, error) {
	var res SubmitResult

	receiptID, err := s.ledger.IssueReceipt(ctx, data)
	if err != nil {
		logger.Error("Failed to issue receipt", "error", err)
		return res, fmt.Errorf("failed to issue receipt: %w", err)
	}
	if receiptID == "" {
		return res, ErrEmptyReceipt
	}
	res.ReceiptID = receiptID

	root, err := s.ledger.Batch(ctx)
	if err != nil {
		logger.Error("Failed to batch receipts", "receipt_id", receiptID, "error", err)
		return res, fmt.Errorf("failed to batch receipts: %w", err)
	}
	if !isBatchRoot(root) {
		logger.Info("Receipt issued, nothing to batch", "receipt_id", receiptID)
		return res, nil
	}
	res.BatchID = root

	anchor, err := s.ledger.Anchor(ctx)
	if err != nil {
		logger.Error("Failed to anchor batch", "batch", root, "error", err)
		return res, fmt.Errorf("failed to anchor batch: %w", err)
	}
	res.Anchor = anchor
	logger.Info("Submitted for anchoring", "receipt_id", receiptID, "batch", root, "anchor", anchor)
	return res, nil
}

// MintOnLedger records an iQube mint event as a proof-of-state receipt.
func (s *Service) MintOnLedger(ctx context.Context, dataHash string) (MintResult, error) {
	id, err := s.ledger.IssueReceipt(ctx, dataHash)
	if err == nil && id == "" {
		err = ErrEmptyReceipt
	}
	res := MintResult{ReceiptID: id}
	s.record(KindMint, res, err)
	if err != nil {
		return res, fmt.Errorf("failed to mint on ledger: %w", err)
	}
	return res, nil
}

// AnchorBatchesNow batches pending receipts and anchors unconditionally.
func (s *Service) AnchorBatchesNow(ctx context.Context) (AnchorResult, error) {
	var res AnchorResult
	root, err := s.ledger.Batch(ctx)
	if err != nil {
		s.record(KindAnchorNow, res, err)
		return res, fmt.Errorf("failed to batch receipts: %w", err)
	}
	res.BatchRoot = root

	anchor, err := s.ledger.Anchor(ctx)
	res.AnchorResult = anchor
	s.record(KindAnchorNow, res, err)
	if err != nil {
		return res, fmt.Errorf("failed to anchor: %w", err)
	}
	return res, nil
}

func (s *Service) GetBitcoinAddress(ctx context.Context, derivationPath [][]byte) (ledger.BitcoinAddress, error) {
	addr, err := s.ledger.GetBitcoinAddress(ctx, derivationPath)
	if err != nil {
		s.record(KindBTCAddress, nil, err)
		return addr, fmt.Errorf("failed to get BTC address: %w", err)
	}
	return addr, nil
}

// SubmitCrossChainMessage sends payload as UTF-8 bytes and returns the
// message id.
func (s *Service) SubmitCrossChainMessage(ctx context.Context, sourceChain, destChain uint32, payload string) (string, error) {
	id, err := s.ledger.SubmitDVNMessage(ctx, sourceChain, destChain, []byte(payload), DefaultSender)
	if err == nil && id == "" {
		err = errors.New("ledger returned an empty message id")
	}
	s.record(KindDVNSubmit, map[string]interface{}{
		"messageId":   id,
		"sourceChain": sourceChain,
		"destChain":   destChain,
	}, err)
	if err != nil {
		return "", fmt.Errorf("failed to submit DVN message: %w", err)
	}
	return id, nil
}

// AttestMessage submits one attestation per validator, stopping at the
// first failure.
func (s *Service) AttestMessage(ctx context.Context, messageID string, validators []string) error {
	if len(validators) == 0 {
		validators = DefaultValidators
	}
	for _, v := range validators {
		sig := []byte(fmt.Sprintf("sig:%s:%s", messageID, v))
		if _, err := s.ledger.SubmitAttestation(ctx, messageID, v, sig); err != nil {
			s.record(KindDVNAttest, map[string]interface{}{"messageId": messageID, "validator": v}, err)
			return fmt.Errorf("attestation by %s failed: %w", v, err)
		}
	}
	s.record(KindDVNAttest, map[string]interface{}{"messageId": messageID, "validators": validators}, nil)
	return nil
}

// GetCrossChainMessageStatus counts attestations and checks whether the
// message is in the ready set.
func (s *Service) GetCrossChainMessageStatus(ctx context.Context, messageID string) (MessageStatus, error) {
	atts, err := s.ledger.GetMessageAttestations(ctx, messageID)
	if err != nil {
		return MessageStatus{}, err
	}
	ready, err := s.ledger.GetReadyMessages(ctx)
	if err != nil {
		return MessageStatus{}, err
	}
	st := MessageStatus{Attestations: len(atts)}
	for _, m := range ready {
		if m.ID == messageID {
			st.Ready = true
			break
		}
	}
	return st, nil
}

func (s *Service) SetBurnState(ctx context.Context, receiptID, messageID string, burned bool) (string, error) {
	msg, err := s.ledger.SetBurnState(ctx, receiptID, messageID, burned)
	s.record(KindBurnState, map[string]interface{}{
		"receiptId": receiptID,
		"messageId": messageID,
		"burned":    burned,
	}, err)
	return msg, err
}

// GetBurnState returns nil when none is recorded.
func (s *Service) GetBurnState(ctx context.Context, receiptID string) (*ledger.BurnState, error) {
	return s.ledger.GetBurnState(ctx, receiptID)
}

// PendingMessages lists pending DVN messages, empty on failure.
func (s *Service) PendingMessages(ctx context.Context) []ledger.DVNMessage {
	msgs, err := s.ledger.GetPendingMessages(ctx)
	if err != nil || msgs == nil {
		return []ledger.DVNMessage{}
	}
	return msgs
}

// ReadyMessages lists DVN messages with quorum, empty on failure.
func (s *Service) ReadyMessages(ctx context.Context) []ledger.DVNMessage {
	msgs, err := s.ledger.GetReadyMessages(ctx)
	if err != nil || msgs == nil {
		return []ledger.DVNMessage{}
	}
	return msgs
}

// SupportedChains lists EVM chains. Canned chains substituted by the client
// are returned as-is; a hard failure yields an empty list.
func (s *Service) SupportedChains(ctx context.Context) []ledger.EVMChainConfig {
	chains, err := s.ledger.GetSupportedChains(ctx)
	if err != nil && !errors.Is(err, ledger.ErrFallback) {
		return []ledger.EVMChainConfig{}
	}
	if chains == nil {
		return []ledger.EVMChainConfig{}
	}
	return chains
}

// InitializeEVMRPC seeds the chain table; failures are logged only.
func (s *Service) InitializeEVMRPC(ctx context.Context) {
	logger.Info("Initializing EVM RPC service")
	err := s.ledger.InitChainConfigs(ctx)
	s.record(KindInitEVMRPC, nil, err)
	if err != nil {
		logger.Warn("Failed to initialize EVM RPC", "error", err)
		return
	}
	logger.Info("EVM RPC service initialized")
}
