package constants

const (
	MAX_ALLOCATIONS_PER_REQUEST = 100
	MAX_PAGE_SIZE               = 255
	DEFAULT_OFFSET              = 0
	DEFAULT_INVESTORS_LIMIT     = 50
	DEFAULT_CHANGES_LIMIT       = 100
)
