package apierrors

// Unity REST error codes mapped to kinds. Codes not listed map to
// KindGeneric.
const (
	CodeNotFound                     = 131149829
	CodeNothingToModify              = 108007744
	CodeStorageResourceNameInUse     = 108007696
	CodeLUNNameInUse                 = 108007750
	CodeSnapNameInUse                = 100666398
	CodeHostNameInUse                = 151532071
	CodeHLUNumberInUse               = 108007840
	CodeAttachExceedLimit            = 108007833
	CodeHostAccessAlreadyExists      = 108008192
	CodeBaseHasThinClone             = 108009044
	CodeDeleteAttachedSnap           = 6701604
	CodeActionNotSupported           = 131149825
	CodeMigrationSourceDestNotExists = 151036470
	CodeThinCloneNotAllowed          = 108009038
)

var codeKinds = map[int]Kind{
	CodeNotFound:                     KindNotFound,
	CodeNothingToModify:              KindNothingToModify,
	CodeStorageResourceNameInUse:     KindStorageResourceNameInUse,
	CodeLUNNameInUse:                 KindNameInUse,
	CodeSnapNameInUse:                KindNameInUse,
	CodeHostNameInUse:                KindNameInUse,
	CodeHLUNumberInUse:               KindHLUNumberInUse,
	CodeAttachExceedLimit:            KindAttachExceedLimit,
	CodeHostAccessAlreadyExists:      KindHostAccessAlreadyExists,
	CodeBaseHasThinClone:             KindBaseHasThinClone,
	CodeDeleteAttachedSnap:           KindDeleteAttachedSnap,
	CodeActionNotSupported:           KindActionNotSupported,
	CodeMigrationSourceDestNotExists: KindMigrationSourceDestNotExists,
	CodeThinCloneNotAllowed:          KindThinCloneNotAllowed,
}

// FromCode builds an error for an array-reported error code.
func FromCode(code int, message string) *Error {
	kind, ok := codeKinds[code]
	if !ok {
		kind = KindGeneric
	}
	return &Error{Kind: kind, Code: code, Message: message}
}

// CodeFor returns the canonical array code for kind, or 0 when the kind
// is never reported by the array.
func CodeFor(kind Kind) int {
	switch kind {
	case KindNameInUse:
		return CodeLUNNameInUse
	case KindGeneric:
		return 0
	}
	for code, k := range codeKinds {
		if k == kind {
			return code
		}
	}
	return 0
}
