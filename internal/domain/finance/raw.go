package finance

// RawRecord is the loosely structured upstream document for one user.
// The pipeline only reads it.
type RawRecord struct {
	UserID string
	Doc    map[string]any
}

var (
	minimalTopLevel = []string{"name", "dob", "gender", "address", "employment"}
	minimalAccount  = []string{"account_number", "account_type", "currency", "balance"}
)

// MinimalView reduces the record to the fields extraction needs. Each
// account keeps its full transaction history. Keys missing from the
// source stay missing.
func (r RawRecord) MinimalView() map[string]any {
	out := map[string]any{"user_id": r.UserID}
	for _, k := range minimalTopLevel {
		if v, ok := r.Doc[k]; ok && v != nil {
			out[k] = v
		}
	}
	rawAccounts, _ := r.Doc["accounts"].([]any)
	if len(rawAccounts) == 0 {
		return out
	}
	accounts := make([]any, 0, len(rawAccounts))
	for _, a := range rawAccounts {
		acc, ok := a.(map[string]any)
		if !ok {
			continue
		}
		slim := map[string]any{}
		for _, k := range minimalAccount {
			if v, ok := acc[k]; ok && v != nil {
				slim[k] = v
			}
		}
		txns, ok := acc["transactions"].([]any)
		if !ok {
			txns = []any{}
		}
		slim["transactions"] = txns
		accounts = append(accounts, slim)
	}
	out["accounts"] = accounts
	return out
}
