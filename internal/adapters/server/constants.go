package server

const (
	OperationLogin         = "login"
	OperationUpload        = "upload"
	OperationCreateFolder  = "create_folder"
	OperationDelete        = "delete"
	OperationRename        = "rename"
	OperationShareToken    = "share_token"
	OperationShortLink     = "short_link"
	LogUserLoggedIn        = "User logged in"
	LogFileUploaded        = "File uploaded"
	LogFolderCreated       = "Folder created"
	LogFileOrFolderDeleted = "File or folder deleted"
	LogFileOrFolderRenamed = "File or folder renamed"
	LogShareTokenIssued    = "Share token issued"
	LogShortLinkCreated    = "Short link created"
	QueryParamFolder       = "folder"
	QueryParamToken        = "t"
	QueryParamURL          = "url"
	FormParamFile          = "file"
	FormParamName          = "name"
	FormParamOld           = "old"
	FormParamNew           = "new"
	PathVarFilename        = "filename"
	PathVarCode            = "code"
	HeaderAuthorization    = "Authorization"
	HeaderRequestID        = "X-Request-ID"
	BearerPrefix           = "Bearer "
	ContentTypeJSON        = "application/json"
	ContentTypeText        = "text/plain; charset=utf-8"
	multipartMemoryLimit   = 32 << 20
)
