package enum

// TaskKind 标识一次抓取请求的类型
type TaskKind uint8

const (
	TaskKindListing TaskKind = iota + 1
	TaskKindPosting
	TaskKindPhone
)

func (k TaskKind) String() string {
	switch k {
	case TaskKindListing:
		return "listing"
	case TaskKindPosting:
		return "posting"
	case TaskKindPhone:
		return "phone"
	}
	return "unknown"
}

// FlowState 定义了单条posting处理流程的状态
// listing页面只会经历 ListingRequested -> ListingParsed
// posting流程: PostingRequested -> PostingParsed -> [PhoneRequested -> PhoneParsed] -> Finalized
// 任意阶段出现hard failure都会进入Failed，且不会影响其他流程
type FlowState uint8

const (
	FlowStateListingRequested FlowState = iota + 1
	FlowStateListingParsed
	FlowStatePostingRequested
	FlowStatePostingParsed
	FlowStatePhoneRequested
	FlowStatePhoneParsed
	FlowStateFinalized
	FlowStateFailed
)

func (s FlowState) String() string {
	switch s {
	case FlowStateListingRequested:
		return "listing_requested"
	case FlowStateListingParsed:
		return "listing_parsed"
	case FlowStatePostingRequested:
		return "posting_requested"
	case FlowStatePostingParsed:
		return "posting_parsed"
	case FlowStatePhoneRequested:
		return "phone_requested"
	case FlowStatePhoneParsed:
		return "phone_parsed"
	case FlowStateFinalized:
		return "finalized"
	case FlowStateFailed:
		return "failed"
	}
	return "unknown"
}

// Terminal 终止状态之后不再有任何调度
func (s FlowState) Terminal() bool {
	return s == FlowStateFinalized || s == FlowStateFailed
}

const (
	// 默认起始页，站点的page参数从1开始
	DefaultStartPage = 1

	// 有效电话号码最少的数字位数，少于此值视为soft miss
	MinPhoneDigits = 6
	// 乌克兰国家码
	PhoneCountryCode = "38"

	// VIN被站点遮挡时包含的占位字符
	MaskedVINPlaceholder = "xxxx"

	DefaultExportChunkSize = 1000
)
