// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, post, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeUnauthenticated    = "UNAUTHENTICATED"
	ErrCodeInvalidCredentials = "INVALID_CREDENTIALS"
	ErrCodeDuplicateEmail     = "DUPLICATE_EMAIL"
	ErrCodeDuplicateNickname  = "DUPLICATE_NICKNAME"
	ErrCodeUserNotFound       = "USER_NOT_FOUND"
	ErrCodePostNotFound       = "POST_NOT_FOUND"
	ErrCodeNotPostOwner       = "NOT_POST_OWNER"
	ErrCodeAlreadyRetweeted   = "ALREADY_RETWEETED"
	ErrCodeRetweetNotFound    = "RETWEET_NOT_FOUND"
	ErrCodeCommentNotFound    = "COMMENT_NOT_FOUND"
	ErrCodeNotCommentOwner    = "NOT_COMMENT_OWNER"
	ErrCodeInvalidPagination  = "INVALID_PAGINATION"
	ErrCodeInvalidInput       = "INVALID_INPUT"
	ErrCodeServiceUnavailable = "SERVICE_UNAVAILABLE"
)

// NewUnauthenticatedError は認証失敗エラーを生成する。
// トークンの署名不正・期限切れ・セッション不一致はすべてこの1種類に集約し、
// 失敗理由の詳細は呼び出し元に開示しない。
func NewUnauthenticatedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthenticated,
		Message:  "認証に失敗しました。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}

// NewInvalidCredentialsError はログイン失敗エラーを生成する。
// ユーザーが存在しない場合とパスワード不一致の場合を区別しない
// （アカウント列挙攻撃への対策）。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "メールアドレスまたはパスワードが正しくありません。",
		Category: "auth",
		Action:   "入力内容を確認して再度お試しください。",
	}
}

// NewDuplicateEmailError はメールアドレス重複エラーを生成する。
func NewDuplicateEmailError() *APIError {
	return &APIError{
		Code:     ErrCodeDuplicateEmail,
		Message:  "このメールアドレスは既に登録されています。",
		Category: "validation",
		Action:   "別のメールアドレスを使用するか、ログインしてください。",
	}
}

// NewDuplicateNicknameError はニックネーム重複エラーを生成する。
func NewDuplicateNicknameError(nickname string) *APIError {
	return &APIError{
		Code:     ErrCodeDuplicateNickname,
		Message:  fmt.Sprintf("このニックネームは既に使用されています: %s", nickname),
		Category: "validation",
		Action:   "別のニックネームを入力してください。",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "ユーザーが見つかりません。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}

// NewPostNotFoundError は投稿未検出エラーを生成する。
func NewPostNotFoundError(postID string) *APIError {
	return &APIError{
		Code:     ErrCodePostNotFound,
		Message:  fmt.Sprintf("指定された投稿が見つかりません: %s", postID),
		Category: "post",
		Action:   "投稿IDを確認してください。",
	}
}

// NewNotPostOwnerError は投稿の所有者以外による変更操作のエラーを生成する。
func NewNotPostOwnerError() *APIError {
	return &APIError{
		Code:     ErrCodeNotPostOwner,
		Message:  "自分の投稿のみ編集・削除できます。",
		Category: "post",
		Action:   "対象の投稿を確認してください。",
	}
}

// NewAlreadyRetweetedError はリツイート済み投稿への再リツイートのエラーを生成する。
func NewAlreadyRetweetedError() *APIError {
	return &APIError{
		Code:     ErrCodeAlreadyRetweeted,
		Message:  "既にリツイートした投稿です。",
		Category: "post",
		Action:   "リツイートを取り消してから再度お試しください。",
	}
}

// NewRetweetNotFoundError はリツイートしていない投稿の取り消しのエラーを生成する。
func NewRetweetNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeRetweetNotFound,
		Message:  "リツイートが見つかりません。",
		Category: "post",
		Action:   "対象の投稿を確認してください。",
	}
}

// NewCommentNotFoundError はコメント未検出エラーを生成する。
func NewCommentNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeCommentNotFound,
		Message:  "コメントが見つかりません。",
		Category: "post",
		Action:   "コメントIDを確認してください。",
	}
}

// NewNotCommentOwnerError はコメントの所有者以外による変更操作のエラーを生成する。
func NewNotCommentOwnerError() *APIError {
	return &APIError{
		Code:     ErrCodeNotCommentOwner,
		Message:  "自分のコメントのみ編集・削除できます。",
		Category: "post",
		Action:   "対象のコメントを確認してください。",
	}
}

// NewInvalidPaginationError は無効なページングパラメータのエラーを生成する。
func NewInvalidPaginationError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidPagination,
		Message:  fmt.Sprintf("無効なページングパラメータです: %s", reason),
		Category: "validation",
		Action:   "pageとpageSizeには正の整数を指定してください。",
	}
}

// NewInvalidInputError は入力値検証エラーを生成する。
func NewInvalidInputError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidInput,
		Message:  fmt.Sprintf("入力内容に誤りがあります: %s", reason),
		Category: "validation",
		Action:   "入力内容を確認して再度お試しください。",
	}
}

// NewServiceUnavailableError は一時的なインフラ障害のエラーを生成する。
// セッションストアやDBの障害は認証エラーではなくこのエラーとして返す。
func NewServiceUnavailableError() *APIError {
	return &APIError{
		Code:     ErrCodeServiceUnavailable,
		Message:  "サービスが一時的に利用できません。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}
