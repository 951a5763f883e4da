package server

// pageCSS styles the upload zone, result cards and toast stack on top of
// Bootstrap.
const pageCSS = `
body { background: #f4f6fb; }
.upload-zone {
  border: 2px dashed #9aa5b1; border-radius: 12px; padding: 3rem 1rem;
  text-align: center; cursor: pointer; background: #fff;
  transition: border-color .2s, background-color .2s;
}
.upload-zone:hover, .upload-zone:focus { border-color: #0d6efd; outline: none; }
.upload-zone.drag-over { border-color: #0d6efd; background: #e7f1ff; }
.upload-zone.file-selected { border-style: solid; border-color: #198754; }
.upload-zone .fas { font-size: 3rem; margin-bottom: 1rem; color: #6c757d; }
.upload-zone.file-selected .fas { color: #198754; }
.image-preview img { max-height: 320px; }
#loadingModal.show { background: rgba(0, 0, 0, .45); }
.result-card { background: #fff; border-radius: 12px; box-shadow: 0 2px 12px rgba(0, 0, 0, .08); height: 100%; overflow: hidden; }
.result-header { background: linear-gradient(135deg, #0d6efd, #6610f2); color: #fff; padding: 1rem; text-align: center; }
.model-icon .fas { font-size: 2rem; }
.model-name { margin: .5rem 0 0; }
.result-body { padding: 1rem; }
.prediction-value { font-size: 1.25rem; font-weight: 600; }
.confidence-score { margin: 1rem 0; }
.confidence-value { font-size: 1rem; }
.model-stats .stat { display: flex; justify-content: space-between; font-size: .875rem; }
.stat-label { color: #6c757d; }
.model-card { background: #fff; border-radius: 12px; padding: 1rem; height: 100%; text-align: center; }
.model-card .model-icon .fas { color: #0d6efd; }
.toast-stack { position: fixed; top: 1rem; right: 1rem; z-index: 1080; max-width: 360px; }
`
