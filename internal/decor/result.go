package decor

// FirstImageRef 从远程返回值中找出图片路径或 URL。
// 字符串直接使用；非空列表且首元素为字符串时取首元素；其它形状视为无法识别。
func FirstImageRef(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case []string:
		if len(t) > 0 {
			return t[0], true
		}
	case []any:
		if len(t) > 0 {
			if s, ok := t[0].(string); ok {
				return s, true
			}
		}
	}
	return "", false
}
