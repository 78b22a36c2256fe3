// Package httputil holds the retry helper used by the conversion-service
// client.
//
// [Retry] repeats an operation with exponential backoff, but only for errors
// wrapped in [RetryableError]. Clients wrap transport failures and 5xx
// responses and return everything else as is:
//
//	err := httputil.RetryWithBackoff(ctx, func() error {
//	    resp, err := client.Do(req)
//	    if err != nil {
//	        return &httputil.RetryableError{Err: err}
//	    }
//	    ...
//	})
//
// [RetryWithBackoff] uses 3 attempts starting at a 1 second delay.
package httputil
