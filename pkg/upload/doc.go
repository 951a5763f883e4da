// Package upload holds the file acceptance rules and upload storage.
//
// # Validation
//
// Validate applies the selection rules shared by the controller and the
// temp-upload handler: the MIME type must be one of AcceptedTypes or the
// name must end in .dcm, and the file must not exceed MaxFileSize (16 MiB).
// Failures are *errors.Error values (V001, V002) whose Message is the text
// shown to the user.
//
// # Hand-off
//
// WebSocket frames are a poor fit for image bytes, so the browser uploads
// over HTTP and refers to the result by ID:
//
//  1. The session validates the file metadata and asks the client to upload.
//  2. The client POSTs the file (field "file") to the temp-upload Handler.
//  3. The Store keeps the bytes and the handler answers {"temp_id": ...}.
//  4. The client sends the temp ID back over the WebSocket.
//  5. The session calls Store.Claim, reads the content and closes the File,
//     which deletes the temp copy.
//
// Expired temp uploads are removed by Cleanup, which the server runs
// periodically.
//
// # Stores
//
// DiskStore keeps files in a directory with a JSON .meta sidecar per file.
// S3Store keeps them as objects under a key prefix. Both are used twice by
// the server: once for temp uploads and once for the archive of classified
// images served at /uploads/{id}.
package upload
