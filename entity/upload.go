package entity

// AccountRole names which configured storage account served an upload batch.
type AccountRole string

const (
	AccountPrimary   AccountRole = "primary"
	AccountSecondary AccountRole = "secondary"
)

// UploadedFile describes one stored photo.
type UploadedFile struct {
	Name    string      `json:"name"`
	Size    int64       `json:"size"`
	Link    string      `json:"link"`
	Account AccountRole `json:"account"`
}

// UploadBatchResult lists every file of a batch in submission order,
// all of them stored on the same account.
type UploadBatchResult struct {
	Files       []*UploadedFile `json:"files"`
	UsedAccount AccountRole     `json:"usedAccount"`
}
