package drive

// ResolveWebURL returns the browser link of a drive file.
// The webViewLink reported by the API wins; otherwise the link is built from the ID.
func ResolveWebURL(fileID, webViewLink string) string {
	if webViewLink != "" {
		return webViewLink
	}
	if fileID == "" {
		return ""
	}
	return "https://drive.google.com/file/d/" + fileID + "/view"
}
