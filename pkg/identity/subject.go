package identity

import "github.com/google/uuid"

// subjectNamespace is the fixed namespace for deriving internal subject
// IDs. Changing it would re-key every external identity.
var subjectNamespace = uuid.MustParse("24d1a2f3-8a0c-4b6e-9d35-5f1c7e2b9a41")

// SubjectID derives a stable internal UUID from an external token subject.
// The same subject always maps to the same UUID, so identities from the
// token issuer can be joined against membership rows without a mapping
// table.
func SubjectID(subject string) uuid.UUID {
	return uuid.NewSHA1(subjectNamespace, []byte(subject))
}
