package store

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"io"
)

// VerifyRunIntegrity checks a run's stored hashes against its final text and
// the steps stored with it.
func VerifyRunIntegrity(r *Run, steps []Step) error {
	textHash := sha256.Sum256([]byte(r.FinalText))
	if !bytes.Equal(textHash[:], r.FinalTextHash[:]) {
		return fmt.Errorf("final text hash mismatch for run %s: computed %x, stored %x",
			r.ID, textHash, r.FinalTextHash)
	}

	stepsHash := computeStepsHash(steps)
	if !bytes.Equal(stepsHash[:], r.StepsHash[:]) {
		return fmt.Errorf("steps hash mismatch for run %s: computed %x, stored %x",
			r.ID, stepsHash, r.StepsHash)
	}

	return nil
}

// VerifyAllRuns verifies every stored run and returns the IDs of the runs
// that fail.
func (s *Store) VerifyAllRuns() ([]string, error) {
	runs, err := s.ListRuns(0)
	if err != nil {
		return nil, err
	}

	var corrupted []string
	for i := range runs {
		steps, err := s.GetSteps(runs[i].ID)
		if err != nil {
			return nil, fmt.Errorf("get steps for run %s: %w", runs[i].ID, err)
		}
		if err := VerifyRunIntegrity(&runs[i], steps); err != nil {
			corrupted = append(corrupted, runs[i].ID)
		}
	}
	return corrupted, nil
}

// computeStepsHash hashes the ordered edits of a run. The run ID is left out
// so the hash can be computed before the run is named. Returns a zero hash
// if there are no steps.
func computeStepsHash(steps []Step) [32]byte {
	if len(steps) == 0 {
		return [32]byte{}
	}

	h := sha256.New()

	var countBuf [4]byte
	binary.BigEndian.PutUint32(countBuf[:], uint32(len(steps)))
	h.Write(countBuf[:])

	for _, st := range steps {
		var buf [16]byte
		binary.BigEndian.PutUint32(buf[0:4], uint32(st.Ordinal))
		binary.BigEndian.PutUint32(buf[4:8], uint32(st.EventIndex))
		binary.BigEndian.PutUint32(buf[8:12], uint32(st.EventID))
		binary.BigEndian.PutUint32(buf[12:16], uint32(st.Offset))
		h.Write(buf[:])

		writeString(h, st.Inserted)
		writeString(h, st.Removed)
	}

	var result [32]byte
	copy(result[:], h.Sum(nil))
	return result
}

// writeString writes a length-prefixed string.
func writeString(w io.Writer, s string) {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(s)))
	w.Write(lenBuf[:])
	w.Write([]byte(s))
}
