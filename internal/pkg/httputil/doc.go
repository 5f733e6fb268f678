// Package httputil provides the JSON response envelope shared by all API
// handlers: 200 responses wrap their payload in {"success":true,"data":...},
// failures carry {"success":false,"error":...}.
package httputil
