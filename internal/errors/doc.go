// Package errors provides categorized, user-presentable errors for tumorscope.
//
// Every failure the upload flow can surface falls into one of a small set of
// categories, and the category decides how it reaches the user:
//   - validation: bad file type or size, reported as a warning and recovered locally
//   - application: the classifier answered with success=false
//   - transport: the request failed or the response could not be parsed
//   - config, inference, storage: server-side failures
//
// # Error Codes
//
// Each error has a code (e.g., "V001") that maps to:
//   - The exact message shown to the user
//   - A longer explanation for logs and the CLI
//
// # Usage
//
//	err := errors.New("V002").Wrap(cause)
//	if errors.IsCategory(err, errors.CategoryValidation) {
//	    center.Show(toast.LevelWarning, err.Message)
//	}
//
//	fmt.Println(err.Format())
//	// Output:
//	// ERROR V002: File size too large. Please select a file smaller than 16MB.
package errors
