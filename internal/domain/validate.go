package domain

import "regexp"

var (
	// 系统生成的房间号固定为 6 位大写字母数字；
	// 用户自定义房间号放宽到 4-10 位字母数字。
	generatedRoomIDPattern = regexp.MustCompile(`^[A-Z0-9]{6}$`)
	customRoomIDPattern    = regexp.MustCompile(`^[A-Za-z0-9]{4,10}$`)

	// 用户名允许字母、数字、下划线和中文，2-20 个字符。
	usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_\p{Han}]{2,20}$`)
)

// ValidRoomID 报告 id 是否是合法的系统生成房间号。
func ValidRoomID(id string) bool {
	return generatedRoomIDPattern.MatchString(id)
}

// ValidCustomRoomID 报告 id 是否可以作为用户自定义房间号。
func ValidCustomRoomID(id string) bool {
	return customRoomIDPattern.MatchString(id)
}

// ValidUsername 报告 username 是否符合展示用户名的格式要求。
func ValidUsername(username string) bool {
	return usernamePattern.MatchString(username)
}

// ValidRoomName 报告 name 是否符合房间名的长度要求。
// 按字节计数（与数据库列宽一致），不做内容校验。
func ValidRoomName(name string) bool {
	return len(name) >= 2 && len(name) <= 50
}

// ValidMaxPlayers 报告 n 是否是允许的人数上限。
// 至少 2 人才能开局，上限 8 人。
func ValidMaxPlayers(n int) bool {
	return n >= 2 && n <= 8
}
