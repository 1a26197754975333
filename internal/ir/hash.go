package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainRepair  = "condense/repair/v1"
	DomainSummary = "condense/summary/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
// The null byte separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// hashStrings hashes a string-only object. Canonical marshaling of strings
// cannot fail, so a failure here is a programming error.
func hashStrings(domain string, fields map[string]string) string {
	canonical, err := MarshalCanonical(fields)
	if err != nil {
		panic(fmt.Sprintf("%s: canonical marshal of string fields: %v", domain, err))
	}
	return hashWithDomain(domain, canonical)
}

// RepairEventID computes the ID of the synthetic observation that closes an
// orphan action. The same orphan always yields the same ID, which keeps
// repair deterministic across resumes.
func RepairEventID(callID, actionID string) string {
	return "repair-" + hashStrings(DomainRepair, map[string]string{
		"call_id":   callID,
		"action_id": actionID,
	})[:32]
}

// SummaryEventID computes the ID of the summary event spliced for a
// compaction.
func SummaryEventID(compactionID string) string {
	return "summary-" + hashStrings(DomainSummary, map[string]string{
		"compaction_id": compactionID,
	})[:32]
}

// NewEventID mints a time-sortable ID for a freshly created event.
func NewEventID() string {
	return uuid.Must(uuid.NewV7()).String()
}
